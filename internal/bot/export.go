package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clinicbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Appointments"

var exportHeaders = []string{"Date", "Time", "Service", "Doctor", "Status", "Notes", "Reference"}

func (b *Bot) handleExport(ctx context.Context, session *models.Session, chatID int64) {
	if !b.requireLogin(session, chatID) {
		return
	}

	bookings, err := b.appointments.List(ctx)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	if len(bookings) == 0 {
		b.sendHTML(chatID, "You have no appointments to export.")
		return
	}

	filePath, err := b.exportToExcel(session.UserID, bookings)
	if err != nil {
		b.reportError(ctx, session, chatID, err)
		return
	}
	defer func() {
		if err := os.Remove(filePath); err != nil {
			b.logger.Warn().Err(err).Str("file_path", filePath).Msg("remove export failed")
		}
	}()

	if _, err := b.tgService.SendDocument(chatID, filePath, "📋 Your appointments"); err != nil {
		b.reportError(ctx, session, chatID, err)
	}
}

// exportToExcel writes bookings to an .xlsx file under the export directory and returns its path.
func (b *Bot) exportToExcel(userID int64, bookings []models.Booking) (string, error) {
	if err := os.MkdirAll(b.config.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for r, bk := range bookings {
		row := r + 2
		values := []interface{}{
			bk.BookingDate,
			bk.StartTime,
			bookingServiceName(bk),
			bookingDoctorName(bk),
			bk.Status.Label(),
			bk.PatientNotes,
			bk.ID,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 12)
	_ = f.SetColWidth(exportSheet, "C", "D", 28)
	_ = f.SetColWidth(exportSheet, "E", "E", 20)
	_ = f.SetColWidth(exportSheet, "F", "G", 40)

	fileName := fmt.Sprintf("appointments_%d_%s.xlsx", userID, b.now().Format("20060102_150405"))
	filePath := filepath.Join(b.config.Exports.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	b.logger.Info().Str("file_path", filePath).Int("rows", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func bookingServiceName(bk models.Booking) string {
	if bk.Service == nil {
		return bk.ServiceID
	}
	return bk.Service.Name
}

func bookingDoctorName(bk models.Booking) string {
	if bk.Doctor == nil {
		return bk.DoctorID
	}
	return strings.TrimSpace(bk.Doctor.FullName)
}
