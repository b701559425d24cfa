package patient

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/medinexus/hms/internal/domain/access"
)

const exportSheet = "Patients"

var exportHeaders = []string{
	"Patient ID", "First Name", "Last Name", "Date of Birth", "Age", "Gender",
	"Contact", "Type", "Assigned Doctor", "Status", "Admission Date",
}

var exportWidths = []float64{22, 16, 16, 14, 6, 10, 14, 8, 18, 12, 16}

// Export renders the actor's filtered registry as an XLSX workbook.
func (s *Service) Export(ctx context.Context, actor *access.Actor, filter Filter) ([]byte, error) {
	if actor == nil || !s.policy.Allows(actor.Role, access.CapPatientExport) {
		return nil, ErrForbidden
	}
	patients, _, err := s.repo.List(ctx, actor.TenantID, filter, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("export patients: %w", err)
	}

	data, err := s.writeWorkbook(ctx, patients)
	if err != nil {
		return nil, err
	}
	s.recorder.PatientExported(actor.TenantID)
	s.logger.Info().
		Str("tenant_id", actor.TenantID).
		Str("actor_id", actor.ID).
		Int("rows", len(patients)).
		Msg("patient registry exported")
	return data, nil
}

func (s *Service) writeWorkbook(ctx context.Context, patients []*Patient) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(exportSheet, col, col, exportWidths[i]); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	now := s.now()
	for r, p := range patients {
		row := []interface{}{
			p.ID, p.FirstName, p.LastName, p.DOB, p.Age(now), string(p.Gender),
			p.Contact, string(p.Type), s.DoctorName(ctx, p), string(p.Status), p.AdmissionDate,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
