package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/timetable"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
	"github.com/campushq/dept-portal-api/pkg/export"
	"github.com/campushq/dept-portal-api/pkg/storage"
)

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type exportTimetableStore interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	EntriesByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error)
}

// ExportResult carries rendered bytes plus metadata for the download response.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders stored timetables into CSV or PDF downloads.
// When an archive is configured a copy of every export is kept on disk.
type ExportService struct {
	timetables exportTimetableStore
	subjects   subjectReader
	staff      staffReader
	rooms      roomReader
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	archive    *storage.LocalStorage
	logger     *zap.Logger
	defaults   timetable.ConstraintSet
	enabled    bool
}

// NewExportService wires the exporters.
func NewExportService(
	timetables exportTimetableStore,
	subjects subjectReader,
	staff staffReader,
	rooms roomReader,
	archive *storage.LocalStorage,
	logger *zap.Logger,
	defaults timetable.ConstraintSet,
	enabled bool,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		timetables: timetables,
		subjects:   subjects,
		staff:      staff,
		rooms:      rooms,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		archive:    archive,
		logger:     logger,
		defaults:   defaults,
		enabled:    enabled,
	}
}

// Export renders the timetable identified by id in the requested format.
// Supported formats are "csv" and "pdf".
func (s *ExportService) Export(ctx context.Context, id, format string) (*ExportResult, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	format = strings.ToLower(format)
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	entries, err := s.timetables.EntriesByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}

	dataset, err := s.buildDataset(ctx, record, entries)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("timetable_%s_%s_v%d", record.DepartmentID, record.Section, record.Version)
	var result *ExportResult
	switch format {
	case "csv":
		data, err := s.csv.Render(*dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		result = &ExportResult{FileName: name + ".csv", ContentType: "text/csv", Data: data}
	default:
		title := fmt.Sprintf("Timetable %s Section %s (v%d)", record.DepartmentID, record.Section, record.Version)
		data, err := s.pdf.Render(*dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		result = &ExportResult{FileName: name + ".pdf", ContentType: "application/pdf", Data: data}
	}

	if s.archive != nil {
		if _, err := s.archive.Save(result.FileName, result.Data); err != nil {
			s.logger.Warn("failed to archive export", zap.String("file", result.FileName), zap.Error(err))
		}
	}
	return result, nil
}

// buildDataset lays entries out as one row per day with a column per class slot.
func (s *ExportService) buildDataset(ctx context.Context, record *models.Timetable, entries []models.TimetableEntry) (*export.Dataset, error) {
	grid, err := timetable.BuildGrid(s.defaults)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build slot grid")
	}

	subjectCodes, staffNames, roomNames, err := s.labelMaps(ctx, record.DepartmentID)
	if err != nil {
		return nil, err
	}

	headers := []string{"Day"}
	slotHeaders := make(map[int]string, grid.ClassesPerDay)
	for _, slot := range grid.Slots {
		if slot.Day != 1 || slot.IsBreak {
			continue
		}
		header := fmt.Sprintf("%s-%s", slot.Start, slot.End)
		slotHeaders[slot.Index] = header
		headers = append(headers, header)
	}

	cells := make(map[int]map[int]string)
	for _, entry := range entries {
		var staffIDs []string
		_ = json.Unmarshal(entry.StaffIDs, &staffIDs)
		names := make([]string, 0, len(staffIDs))
		for _, staffID := range staffIDs {
			if name, ok := staffNames[staffID]; ok {
				names = append(names, name)
			} else {
				names = append(names, staffID)
			}
		}
		code := subjectCodes[entry.SubjectID]
		if code == "" {
			code = entry.SubjectID
		}
		room := roomNames[entry.RoomID]
		if room == "" {
			room = entry.RoomID
		}
		if cells[entry.DayOfWeek] == nil {
			cells[entry.DayOfWeek] = make(map[int]string)
		}
		cells[entry.DayOfWeek][entry.SlotIndex] = fmt.Sprintf("%s / %s / %s", code, strings.Join(names, ", "), room)
	}

	rows := make([]map[string]string, 0, grid.WorkingDays)
	for day := 1; day <= grid.WorkingDays; day++ {
		row := map[string]string{"Day": dayName(day)}
		for index, header := range slotHeaders {
			if value, ok := cells[day][index]; ok {
				row[header] = value
			} else {
				row[header] = "-"
			}
		}
		rows = append(rows, row)
	}

	return &export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) labelMaps(ctx context.Context, departmentID string) (map[string]string, map[string]string, map[string]string, error) {
	subjects, err := s.subjects.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	staff, err := s.staff.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	rooms, err := s.rooms.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}

	subjectCodes := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		subjectCodes[subject.ID] = subject.Code
	}
	staffNames := make(map[string]string, len(staff))
	for _, member := range staff {
		staffNames[member.ID] = member.FullName
	}
	roomNames := make(map[string]string, len(rooms))
	for _, room := range rooms {
		roomNames[room.ID] = room.Name
	}
	return subjectCodes, staffNames, roomNames, nil
}

func dayName(day int) string {
	if day >= 1 && day <= len(dayNames) {
		return dayNames[day-1]
	}
	return fmt.Sprintf("Day %d", day)
}
