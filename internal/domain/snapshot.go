package domain

// SnapshotCategory is the top-level directory a snapshot is filed under
type SnapshotCategory string

const (
	SnapshotEvents      SnapshotCategory = "events"
	SnapshotEnrollments SnapshotCategory = "enrollments"
	SnapshotSpoofing    SnapshotCategory = "spoofing"
	SnapshotTemp        SnapshotCategory = "temp"
	SnapshotFailed      SnapshotCategory = "failed"
)

// SnapshotCategories lists every category in creation order
var SnapshotCategories = []SnapshotCategory{
	SnapshotEvents,
	SnapshotEnrollments,
	SnapshotSpoofing,
	SnapshotTemp,
	SnapshotFailed,
}

func (c SnapshotCategory) Valid() bool {
	for _, v := range SnapshotCategories {
		if v == c {
			return true
		}
	}
	return false
}
