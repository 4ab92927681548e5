package images

import (
	"crypto/md5"
	"fmt"

	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum for a Mat.
//
// It is used to verify that pipeline stages never write into caller-owned
// buffers.
//
// Example:
//
//	before := ComputeMatChecksum(frame)
//	_ = extractor.Extract(frame, mask)
//	after := ComputeMatChecksum(frame) // equal to before
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%dx%d:", mat.Rows(), mat.Cols(), mat.Channels())
	hash.Write(mat.ToBytes())
	return fmt.Sprintf("%x", hash.Sum(nil))
}
