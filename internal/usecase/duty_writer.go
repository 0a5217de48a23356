package usecase

import (
	"context"

	"rostersync-service/internal/domain/entity"
	"rostersync-service/internal/domain/repository"
)

// writeDuties expands a freshly materialized day into ordered duty rows and
// validated sector rows. Sequence order is 1-based input order. A sector
// whose location codes fall short of three characters is skipped with a
// warning; the duty row persists either way. Returns the count of sectors
// actually written.
func (s *RosterSyncer) writeDuties(ctx context.Context, tx repository.SyncScope, dayID uint, duties []entity.Duty) (int, error) {
	sectorsWritten := 0
	for i := range duties {
		duty := &duties[i]
		dutyID, err := tx.InsertDuty(ctx, &entity.DutyAssignment{
			DayID:         dayID,
			SequenceOrder: i + 1,
			Duty:          *duty,
		})
		if err != nil {
			return 0, err
		}

		for _, sector := range duty.Sectors {
			if !sector.Valid() {
				s.logger.Warn("Skipping sector with invalid location codes",
					"flightNumber", sector.FlightNumber,
					"depCode", sector.DepCode,
					"arrCode", sector.ArrCode)
				s.metrics.SectorsSkipped.Inc()
				continue
			}
			sector.DepCode = sector.DepCode[:3]
			sector.ArrCode = sector.ArrCode[:3]
			err := tx.InsertSector(ctx, &entity.SectorRow{
				DutyAssignmentID: dutyID,
				Sector:           sector,
			})
			if err != nil {
				return 0, err
			}
			sectorsWritten++
		}
	}
	return sectorsWritten, nil
}
