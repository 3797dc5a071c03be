package uvf

// On-disk layout. Every field is little-endian; brick payloads are stored
// little-endian as well, so a same-endian host reads them straight through.
//
//	magic "UVF1" | version u16 | flags u16 | uuid [16]byte
//	voxelType u8 | components u8 | semantic u32
//	maxBrickSize u64 | brickOverlap u64 | timesteps u64
//	aspect 3xf32 | title str | source str
//	lodCount u32 | per LOD: domain 3xu64, brickCount 3xu64
//	per LOD, per brick (z-major): payloadLen u64, payload
//	maxmin: count u64, per entry: min,max,gradMin,gradMax f64
//	hist1d: bins u64, counts []u64
//	hist2d: rows u64, cols u64, counts []u64 row-major
//	meshCount u32, per mesh: name str, vertexCount u64,
//	  vertices 3xf32 each, normals 3xf32, colors 4xf32,
//	  indexCount u64, indices []u32
//
// Strings are u32 length + bytes.

var magic = [4]byte{'U', 'V', 'F', '1'}

const formatVersion uint16 = 1

// Extension is the canonical file extension, upper-case.
const Extension = "UVF"
