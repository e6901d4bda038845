package fs

import (
	iofs "io/fs"

	"github.com/wippyai/motor-rt/abi"
)

func attrOf(info iofs.FileInfo) abi.FileAttr {
	attr := abi.FileAttr{
		Size:     uint64(info.Size()),
		Modified: uint64(info.ModTime().UnixNano()),
		Perm:     uint32(info.Mode().Perm()),
		Type:     typeOf(info.Mode()),
	}
	attr.Accessed, attr.Created = sysTimes(info)
	return attr
}

func typeOf(m iofs.FileMode) abi.FileType {
	switch {
	case m.IsRegular():
		return abi.FileTypeFile
	case m.IsDir():
		return abi.FileTypeDir
	case m&iofs.ModeSymlink != 0:
		return abi.FileTypeSymlink
	default:
		return abi.FileTypeUnknown
	}
}
