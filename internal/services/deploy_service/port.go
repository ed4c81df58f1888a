package deployservice

import "crypto/md5"

// AllocatePort maps (project, commitHash) into [base, base+size). The first
// four hex digits of md5("<project>-<commitHash>") pick the offset, so the
// same commit always gets the same port.
func AllocatePort(project, commitHash string, base, size int) int {
	sum := md5.Sum([]byte(project + "-" + commitHash))
	offset := int(sum[0])<<8 | int(sum[1])
	return base + offset%size
}
