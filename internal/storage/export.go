package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const ordersSheet = "Orders"

var orderHeaders = []string{
	"ID", "Session", "Category", "Transmission", "Price (€)",
	"Customer", "Phone", "Email", "Address", "City", "Zip", "Country",
	"Gift email", "Instructor", "Payment ID", "Amount (cents)", "Currency",
	"Status", "Created At",
}

// ExportOrdersToExcel writes every order into dir and returns the file path.
func (s *PostgresStorage) ExportOrdersToExcel(ctx context.Context, dir string) (string, error) {
	const operation = "storage.ExportOrdersToExcel"

	orders, err := s.ListOrders(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("orders_%s.xlsx", s.now().Format("20060102_1504")))
	if err := writeOrdersWorkbook(orders, path); err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}

	s.logger.Info("Orders exported")
	return path, nil
}

// ExportOrderToExcel writes a one-order report for the admin chat.
func ExportOrderToExcel(order Order, dir string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Order"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}

	rows := [][2]any{
		{"Order ID", order.ID},
		{"Created At", order.CreatedAt.Format("2006-01-02 15:04")},
		{"Course", order.Category},
		{"Transmission", order.Transmission},
		{"Price (€)", order.Price},
		{"Customer", order.CustomerName()},
		{"Phone", order.Phone},
		{"Email", order.Email},
		{"Gift email", order.GiftEmail},
		{"Instructor", order.Instructor},
		{"Payment ID", order.PaymentID},
		{"Amount (cents)", order.Amount},
		{"Currency", order.Currency},
	}
	for i, row := range rows {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellStyle(sheet, "A1", fmt.Sprintf("A%d", len(rows)), style)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("order_%d_%s.xlsx",
		order.ID,
		order.CreatedAt.Format("20060102_1504")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return path, nil
}

func writeOrdersWorkbook(orders []Order, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	for col, header := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(ordersSheet, cell, header)
	}

	for row, order := range orders {
		data := []any{
			order.ID,
			order.SessionID,
			order.Category,
			order.Transmission,
			order.Price,
			order.CustomerName(),
			order.Phone,
			order.Email,
			order.Address1,
			order.City,
			order.Zip,
			order.Country,
			order.GiftEmail,
			order.Instructor,
			order.PaymentID,
			order.Amount,
			order.Currency,
			order.Status,
			order.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, value := range data {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(ordersSheet, cell, value)
		}
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	last, _ := excelize.CoordinatesToCellName(len(orderHeaders), 1)
	f.SetCellStyle(ordersSheet, "A1", last, style)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
