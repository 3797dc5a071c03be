package uvf

import (
	"bytes"
	"testing"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

func testVolume(domain types.Vec3) []byte {
	raw := make([]byte, domain.Volume())
	for i := range raw {
		raw[i] = byte(i % 251)
	}
	return raw
}

func TestBrickLayout(t *testing.T) {
	testCases := []struct {
		name         string
		domain       types.Vec3
		maxBrick     uint64
		overlap      uint64
		wantLODs     uint64
		wantBricks0  uint64
	}{
		{
			name:        "Single Brick",
			domain:      types.Vec3{X: 8, Y: 8, Z: 8},
			maxBrick:    8,
			overlap:     2,
			wantLODs:    1,
			wantBricks0: 1,
		},
		{
			name:        "Split Along X",
			domain:      types.Vec3{X: 10, Y: 4, Z: 4},
			maxBrick:    8,
			overlap:     2,
			wantLODs:    2,
			wantBricks0: 3,
		},
		{
			name:        "Two Levels",
			domain:      types.Vec3{X: 8, Y: 8, Z: 8},
			maxBrick:    4,
			overlap:     1,
			wantLODs:    2,
			wantBricks0: 64,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rdb, err := NewRasterDataBlock(types.VoxelUint8, 1, tc.domain,
				types.AspectRatio{X: 1, Y: 1, Z: 1}, tc.maxBrick, tc.overlap)
			if err != nil {
				t.Fatalf("NewRasterDataBlock failed: %v", err)
			}
			if got := rdb.LODCount(); got != tc.wantLODs {
				t.Errorf("LODCount() = %d, want %d", got, tc.wantLODs)
			}
			if got, _ := rdb.BrickCount(0); got != tc.wantBricks0 {
				t.Errorf("BrickCount(0) = %d, want %d", got, tc.wantBricks0)
			}
		})
	}
}

func TestNDBrickIndex(t *testing.T) {
	rdb, err := NewRasterDataBlock(types.VoxelUint8, 1,
		types.Vec3{X: 10, Y: 10, Z: 10}, types.AspectRatio{X: 1, Y: 1, Z: 1}, 8, 2)
	if err != nil {
		t.Fatalf("NewRasterDataBlock failed: %v", err)
	}
	counts := rdb.Levels[0].BrickCount
	if counts.X != 3 || counts.Y != 3 || counts.Z != 3 {
		t.Fatalf("brick grid = %v, want 3x3x3", counts)
	}

	testCases := []struct {
		index uint64
		want  types.Vec3
	}{
		{0, types.Vec3{X: 0, Y: 0, Z: 0}},
		{2, types.Vec3{X: 2, Y: 0, Z: 0}},
		{3, types.Vec3{X: 0, Y: 1, Z: 0}},
		{9, types.Vec3{X: 0, Y: 0, Z: 1}},
		{26, types.Vec3{X: 2, Y: 2, Z: 2}},
	}
	for _, tc := range testCases {
		got, err := rdb.NDBrickIndex(BrickKey{LOD: 0, Index: tc.index})
		if err != nil {
			t.Fatalf("NDBrickIndex(%d) failed: %v", tc.index, err)
		}
		if got != tc.want {
			t.Errorf("NDBrickIndex(%d) = %v, want %v", tc.index, got, tc.want)
		}
	}
	if _, err := rdb.NDBrickIndex(BrickKey{LOD: 0, Index: 27}); err == nil {
		t.Error("out of range brick index accepted")
	}
}

func TestFillExportRoundTrip(t *testing.T) {
	testCases := []struct {
		name   string
		domain types.Vec3
	}{
		{"Single Brick", types.Vec3{X: 6, Y: 6, Z: 6}},
		{"Multi Brick", types.Vec3{X: 13, Y: 9, Z: 11}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rdb, err := NewRasterDataBlock(types.VoxelUint8, 1, tc.domain,
				types.AspectRatio{X: 1, Y: 1, Z: 1}, 8, 2)
			if err != nil {
				t.Fatalf("NewRasterDataBlock failed: %v", err)
			}
			raw := testVolume(tc.domain)
			if err := rdb.FillFromRaw(raw); err != nil {
				t.Fatalf("FillFromRaw failed: %v", err)
			}
			out, err := rdb.ExportLOD(0)
			if err != nil {
				t.Fatalf("ExportLOD failed: %v", err)
			}
			if !bytes.Equal(raw, out) {
				t.Error("exported LOD 0 differs from input volume")
			}
		})
	}
}

func TestFillFromRawLengthCheck(t *testing.T) {
	rdb, err := NewRasterDataBlock(types.VoxelUint16, 1,
		types.Vec3{X: 4, Y: 4, Z: 4}, types.AspectRatio{X: 1, Y: 1, Z: 1}, 8, 2)
	if err != nil {
		t.Fatalf("NewRasterDataBlock failed: %v", err)
	}
	if err := rdb.FillFromRaw(make([]byte, 10)); err == nil {
		t.Error("short raw volume accepted")
	}
}

func TestDownsampleAverages(t *testing.T) {
	// 2x2x2 volume of constant 100 collapses to one voxel of 100.
	src := types.Vec3{X: 2, Y: 2, Z: 2}
	dst := types.Vec3{X: 1, Y: 1, Z: 1}
	raw := []byte{100, 100, 100, 100, 100, 100, 100, 100}
	out := downsample(raw, types.VoxelUint8, 1, src, dst)
	if len(out) != 1 || out[0] != 100 {
		t.Errorf("downsample = %v, want [100]", out)
	}
}
