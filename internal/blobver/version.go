// Package blobver implements the version descriptor that makes a flat
// object store behave as a versioned tree: every object name is
// "<logical_path>/<serialized version>", and this package owns the codec,
// equality, and ordering for the serialized half.
package blobver

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldCount is the number of '-'-joined fields in a serialized version:
// mod_time, upload_time, permissions, size, file_type, owner, group.
const fieldCount = 7

const permissionsBase = 8

// FileType identifies what payload a version's blob body holds.
type FileType int

// The four file types a version can describe.
const (
	Regular FileType = iota
	Symlink
	Folder
	Deleted
)

// String renders a FileType using the exact case-sensitive token that
// appears in a serialized version.
func (t FileType) String() string {
	switch t {
	case Regular:
		return "Regular"
	case Symlink:
		return "Symlink"
	case Folder:
		return "Folder"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// ParseFileType parses the exact case-sensitive token used in a serialized
// version. Unrecognized tokens are a MalformedRemoteError.
func ParseFileType(raw string) (FileType, error) {
	switch raw {
	case "Regular":
		return Regular, nil
	case "Symlink":
		return Symlink, nil
	case "Folder":
		return Folder, nil
	case "Deleted":
		return Deleted, nil
	default:
		return 0, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("%q is not a file type", raw)}
	}
}

// Version is the atomic unit of the system: a point-in-time description of
// one logical path's content and POSIX metadata.
type Version struct {
	ModTime     int64
	UploadTime  int64
	Permissions uint32
	Size        uint64
	Type        FileType
	Owner       uint32
	Group       uint32
}

// String serializes the version as the seven '-'-joined fields that follow
// the final '/' in a remote object name.
func (v Version) String() string {
	return fmt.Sprintf("%d-%d-%o-%d-%s-%d-%d",
		v.ModTime, v.UploadTime, v.Permissions, v.Size, v.Type, v.Owner, v.Group)
}

// Parse decodes a serialized version. It requires exactly fieldCount
// '-'-separated fields; any other shape, any numeric parse failure, or an
// unrecognized file-type token is a MalformedRemoteError.
func Parse(raw string) (Version, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != fieldCount {
		return Version{}, &MalformedRemoteError{
			Input: raw,
			Err:   fmt.Errorf("expected %d fields, got %d", fieldCount, len(parts)),
		}
	}

	modTime, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Version{}, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("mod_time: %w", err)}
	}

	uploadTime, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Version{}, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("upload_time: %w", err)}
	}

	perms, err := strconv.ParseUint(parts[2], permissionsBase, 32)
	if err != nil {
		return Version{}, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("permissions: %w", err)}
	}

	size, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return Version{}, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("size: %w", err)}
	}

	fileType, err := ParseFileType(parts[4])
	if err != nil {
		return Version{}, err
	}

	owner, err := strconv.ParseUint(parts[5], 10, 32)
	if err != nil {
		return Version{}, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("owner: %w", err)}
	}

	group, err := strconv.ParseUint(parts[6], 10, 32)
	if err != nil {
		return Version{}, &MalformedRemoteError{Input: raw, Err: fmt.Errorf("group: %w", err)}
	}

	return Version{
		ModTime:     modTime,
		UploadTime:  uploadTime,
		Permissions: uint32(perms),
		Size:        size,
		Type:        fileType,
		Owner:       uint32(owner),
		Group:       uint32(group),
	}, nil
}

// Equal reports whether two versions describe the same content — every
// field except UploadTime, which is creation-time metadata, not content.
func (v Version) Equal(other Version) bool {
	return v.ModTime == other.ModTime &&
		v.Permissions == other.Permissions &&
		v.Size == other.Size &&
		v.Type == other.Type &&
		v.Owner == other.Owner &&
		v.Group == other.Group
}

// Before reports whether v was uploaded strictly earlier than other.
// Ordering is defined only by UploadTime.
func (v Version) Before(other Version) bool {
	return v.UploadTime < other.UploadTime
}

// MalformedRemoteError reports a remote object name or version string that
// does not follow the codec this package implements.
type MalformedRemoteError struct {
	Input string
	Err   error
}

func (e *MalformedRemoteError) Error() string {
	return fmt.Sprintf("malformed remote version %q: %v", e.Input, e.Err)
}

func (e *MalformedRemoteError) Unwrap() error { return e.Err }
