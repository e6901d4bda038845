package abi

// TLSKey names a thread-local storage slot.
type TLSKey uint64

// ThreadHandle names a spawned thread until it is joined.
type ThreadHandle uint64

// FileType classifies a filesystem object.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeFile
	FileTypeDir
	FileTypeSymlink
)

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDir:
		return "dir"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileAttr describes a filesystem object. Times are nanoseconds since
// the Unix epoch; zero means unknown.
type FileAttr struct {
	Size     uint64
	Created  uint64
	Accessed uint64
	Modified uint64
	Perm     uint32
	Type     FileType
}

// OpenOptions is the flag set accepted by fs.open.
type OpenOptions uint32

const (
	OpenRead OpenOptions = 1 << iota
	OpenWrite
	OpenAppend
	OpenTruncate
	OpenCreate
	OpenCreateNew
)

// Has reports whether all bits of o2 are set.
func (o OpenOptions) Has(o2 OpenOptions) bool {
	return o&o2 == o2
}

// Whence is the origin of a seek.
type Whence uint8

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// DirEntry is one readdir result.
type DirEntry struct {
	Name string
	Attr FileAttr
}
