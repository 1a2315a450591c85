package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AttendanceLog appends one line per cleared identification to
// dir/attendance_YYYY-MM-DD.txt
type AttendanceLog struct {
	dir string
	mu  sync.Mutex
}

func NewAttendanceLog(dir string) (*AttendanceLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attendance dir %q: %w", dir, err)
	}
	return &AttendanceLog{dir: dir}, nil
}

func (a *AttendanceLog) Append(at time.Time, personID, name string, confidence float64) error {
	line := fmt.Sprintf("%s | %s | %s | %s | %.2f\n",
		at.Format(dateLayout), at.Format("15:04:05"), personID, name, confidence)

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.FileFor(at), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open attendance log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write attendance log: %w", err)
	}
	return nil
}

func (a *AttendanceLog) FileFor(day time.Time) string {
	return filepath.Join(a.dir, "attendance_"+day.Format(dateLayout)+".txt")
}
