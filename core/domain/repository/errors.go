package repository

import "errors"

var (
	ErrSnapshotNotFound = errors.New("match snapshot not found")
	ErrSnapshotCorrupt  = errors.New("match snapshot corrupt")
	// 旧版本快照不覆盖新版本
	ErrStaleSnapshot = errors.New("stale match snapshot")
)
