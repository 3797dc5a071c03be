package types

import "fmt"

// VoxelType identifies the scalar type of a single volume component.
type VoxelType uint8

const (
	VoxelUnknown VoxelType = iota
	VoxelInt8
	VoxelUint8
	VoxelInt16
	VoxelUint16
	VoxelInt32
	VoxelUint32
	VoxelInt64
	VoxelUint64
	VoxelFloat32
	VoxelFloat64
)

// VoxelTypeFrom maps a (bit width, signedness, floatness) triple onto a
// VoxelType. Float data narrower than 32 bit has no representation and is
// rejected.
func VoxelTypeFrom(bitWidth uint64, signed, float bool) (VoxelType, error) {
	if float {
		switch bitWidth {
		case 32:
			return VoxelFloat32, nil
		case 64:
			return VoxelFloat64, nil
		}
		return VoxelUnknown, fmt.Errorf("no %d bit float voxel type", bitWidth)
	}
	switch bitWidth {
	case 8:
		if signed {
			return VoxelInt8, nil
		}
		return VoxelUint8, nil
	case 16:
		if signed {
			return VoxelInt16, nil
		}
		return VoxelUint16, nil
	case 32:
		if signed {
			return VoxelInt32, nil
		}
		return VoxelUint32, nil
	case 64:
		if signed {
			return VoxelInt64, nil
		}
		return VoxelUint64, nil
	}
	return VoxelUnknown, fmt.Errorf("no %d bit voxel type", bitWidth)
}

// Size returns the number of bytes a single component occupies.
func (v VoxelType) Size() int {
	switch v {
	case VoxelInt8, VoxelUint8:
		return 1
	case VoxelInt16, VoxelUint16:
		return 2
	case VoxelInt32, VoxelUint32, VoxelFloat32:
		return 4
	case VoxelInt64, VoxelUint64, VoxelFloat64:
		return 8
	}
	return 0
}

// BitWidth returns the component width in bits.
func (v VoxelType) BitWidth() uint64 { return uint64(v.Size()) * 8 }

// IsFloat reports whether the type is a floating point type.
func (v VoxelType) IsFloat() bool {
	return v == VoxelFloat32 || v == VoxelFloat64
}

// IsSigned reports whether the type carries a sign. Float implies signed.
func (v VoxelType) IsSigned() bool {
	switch v {
	case VoxelInt8, VoxelInt16, VoxelInt32, VoxelInt64, VoxelFloat32, VoxelFloat64:
		return true
	}
	return false
}

func (v VoxelType) String() string {
	switch v {
	case VoxelInt8:
		return "int8"
	case VoxelUint8:
		return "uint8"
	case VoxelInt16:
		return "int16"
	case VoxelUint16:
		return "uint16"
	case VoxelInt32:
		return "int32"
	case VoxelUint32:
		return "uint32"
	case VoxelInt64:
		return "int64"
	case VoxelUint64:
		return "uint64"
	case VoxelFloat32:
		return "float32"
	case VoxelFloat64:
		return "float64"
	}
	return "unknown"
}
