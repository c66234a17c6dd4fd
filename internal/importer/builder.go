package importer

import (
	"strings"
	"time"

	"github.com/livestock-import-api/internal/models"
)

// RowEntity is the output of building one offtake data row: the row's
// singular fields plus the candidate units it contributes. A row with zero
// units never starts a transaction on its own but may still carry the
// identity that subsequent continuation rows attach to.
type RowEntity struct {
	Name          string
	Gender        string
	IDNumber      string
	Phone         string
	County        string
	Subcounty     string
	Location      string
	Programme     string
	RegisteredBy  string
	ExternalID    string
	RawDate       string
	Date          *time.Time
	ReportedCount int
	Units         []models.CandidateUnit
}

// BuildOfftakeRow converts one decoded data row into a RowEntity using the
// resolved column map. Unit extraction walks discovered unit indexes in
// ascending order; a unit whose live weight, carcass weight and price cells
// are all blank is skipped rather than emitted as a zero-valued unit. Legacy
// flat exports (one un-numbered weight/price column) resolve to unit 0 and
// need no special casing here.
func BuildOfftakeRow(row []string, cm ColumnMap) RowEntity {
	e := RowEntity{
		Name:         cell(row, cm, RoleName),
		Gender:       cell(row, cm, RoleGender),
		IDNumber:     cell(row, cm, RoleIDNumber),
		Phone:        cell(row, cm, RolePhone),
		County:       cell(row, cm, RoleCounty),
		Subcounty:    cell(row, cm, RoleSubcounty),
		Location:     cell(row, cm, RoleLocation),
		Programme:    cell(row, cm, RoleProgramme),
		RegisteredBy: cell(row, cm, RoleRegisteredBy),
		ExternalID:   cell(row, cm, RoleExternalID),
		RawDate:      cell(row, cm, RoleDate),
	}
	e.Date = Date(e.RawDate)

	for _, unit := range cm.UnitOrder {
		bucket := cm.Units[unit]
		live := unitCell(row, bucket, RoleLiveWeight)
		carcass := unitCell(row, bucket, RoleCarcassWeight)
		price := unitCell(row, bucket, RolePrice)
		count := unitCell(row, bucket, RoleUnitCount)

		if count != "" && e.ReportedCount == 0 {
			e.ReportedCount = int(Magnitude(count))
		}
		if live == "" && carcass == "" && price == "" {
			continue
		}
		e.Units = append(e.Units, models.CandidateUnit{
			LiveWeight:    Magnitude(live),
			CarcassWeight: Magnitude(carcass),
			Price:         Magnitude(price),
		})
	}

	return e
}

// BuildFlatRow converts one decoded data row into a flat candidate record
// for the simple imports (farmers, fodder, training).
func BuildFlatRow(row []string, cm ColumnMap, now time.Time) models.FlatRecord {
	return models.FlatRecord{
		Name:         cell(row, cm, RoleName),
		Gender:       cell(row, cm, RoleGender),
		IDNumber:     cell(row, cm, RoleIDNumber),
		Phone:        cell(row, cm, RolePhone),
		County:       cell(row, cm, RoleCounty),
		Subcounty:    cell(row, cm, RoleSubcounty),
		Location:     cell(row, cm, RoleLocation),
		Programme:    cell(row, cm, RoleProgramme),
		RegisteredBy: cell(row, cm, RoleRegisteredBy),
		Date:         Date(cell(row, cm, RoleDate)),
		Vaccinated:   Boolean(cell(row, cm, RoleVaccinated)),
		Vaccines:     List(cell(row, cm, RoleVaccines)),
		CreatedAt:    now,
	}
}

func cell(row []string, cm ColumnMap, role Role) string {
	idx, ok := cm.Singular[role]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func unitCell(row []string, bucket map[Role]int, role Role) string {
	idx, ok := bucket[role]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
