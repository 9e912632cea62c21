package donations

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a single blood donation entry. Fields are stored in this order,
// comma separated, one record per line. Values are not escaped, so a field
// containing a comma will not survive a round trip.
type Record struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	TaxID     string `json:"taxId"`
	BirthDate string `json:"birthDate"`
	BloodType string `json:"bloodType"`
	VolumeML  int    `json:"volumeMl"`
}

// String returns the line representation of the record without a line terminator.
func (r Record) String() string {
	return fmt.Sprintf("%d,%s,%s,%s,%s,%d", r.ID, r.Name, r.TaxID, r.BirthDate, r.BloodType, r.VolumeML)
}

// parseID extracts the identifier column of a record line.
func parseID(line string) (int, error) {
	field, _, _ := strings.Cut(line, ",")
	id, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", field, err)
	}
	return id, nil
}
