// Package export renders purchase orders as documents.
package export

import (
	"fmt"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet layout of the generated PO workbook
const (
	sheetName = "Purchase Order"

	cellTitle      = "A1"
	cellCompany    = "A2"
	cellPONoLabel  = "A4"
	cellPONo       = "B4"
	cellPODateLbl  = "D4"
	cellPODate     = "E4"
	cellPRNoLabel  = "A5"
	cellPRNo       = "B5"
	cellDeptLabel  = "D5"
	cellDept       = "E5"
	cellVendorLbl  = "A6"
	cellVendor     = "B6"
	cellContactLbl = "D6"
	cellContact    = "E6"
	cellPurposeLbl = "A7"
	cellPurpose    = "B7"

	headerRow    = 9
	dataRowStart = 10

	colItemNo      = "A"
	colDescription = "B"
	colQuantity    = "C"
	colUOM         = "D"
	colUnitPrice   = "E"
	colTotal       = "F"
)

// ExcelExporter writes a PO and its line items as an .xlsx workbook
type ExcelExporter struct {
	companyName string
	logger      *zap.Logger
}

// NewExcelExporter creates a new ExcelExporter
func NewExcelExporter(companyName string, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{
		companyName: companyName,
		logger:      logger,
	}
}

// ContentType is the MIME type of the generated document
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension is the file extension of the generated document
func (e *ExcelExporter) Extension() string {
	return ".xlsx"
}

// Export renders the workbook and returns its bytes
func (e *ExcelExporter) Export(po *entity.PurchaseOrder, pr *entity.Requisition) ([]byte, error) {
	if po == nil || pr == nil {
		return nil, fmt.Errorf("purchase order and requisition are required")
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := e.fillHeader(file, po, pr); err != nil {
		return nil, fmt.Errorf("failed to fill header: %w", err)
	}
	last, err := e.fillItemRows(file, pr.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to fill items: %w", err)
	}
	if err := e.fillTotals(file, po, pr, last+1); err != nil {
		return nil, fmt.Errorf("failed to fill totals: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Purchase order exported",
		zap.String("po_no", po.PONo),
		zap.String("pr_no", pr.PRNo),
		zap.Int("item_count", len(pr.Items)))
	return buf.Bytes(), nil
}

func (e *ExcelExporter) fillHeader(file *excelize.File, po *entity.PurchaseOrder, pr *entity.Requisition) error {
	cells := []struct {
		cell  string
		value interface{}
	}{
		{cellTitle, "PURCHASE ORDER"},
		{cellCompany, e.companyName},
		{cellPONoLabel, "PO No"},
		{cellPONo, po.PONo},
		{cellPODateLbl, "PO Date"},
		{cellPODate, po.PODate.Format("2006-01-02")},
		{cellPRNoLabel, "PR No"},
		{cellPRNo, pr.PRNo},
		{cellDeptLabel, "Department"},
		{cellDept, pr.Department},
		{cellVendorLbl, "Vendor"},
		{cellVendor, po.VendorName},
		{cellContactLbl, "Contact"},
		{cellContact, pr.VendorContact},
		{cellPurposeLbl, "Purpose"},
		{cellPurpose, pr.Purpose},
	}
	for _, c := range cells {
		if err := file.SetCellValue(sheetName, c.cell, c.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", c.cell, err)
		}
	}

	headers := []string{"No", "Description", "Qty", "UOM", "Unit Price", "Total"}
	cell, err := excelize.CoordinatesToCellName(1, headerRow)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheetName, cell, &headers); err != nil {
		return fmt.Errorf("failed to set header row: %w", err)
	}

	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = file.SetCellStyle(sheetName, cellTitle, cellTitle, style)
		_ = file.SetCellStyle(sheetName, "A9", "F9", style)
	} else {
		e.logger.Warn("Failed to create header style", zap.Error(err))
	}
	return nil
}

// fillItemRows writes one row per line item and returns the last row used
func (e *ExcelExporter) fillItemRows(file *excelize.File, items []entity.LineItem) (int, error) {
	row := dataRowStart - 1
	for i, item := range items {
		row = dataRowStart + i
		values := []struct {
			col   string
			value interface{}
		}{
			{colItemNo, item.ItemNo},
			{colDescription, item.Description},
			{colQuantity, item.Quantity},
			{colUOM, item.UnitOfMeasure},
			{colUnitPrice, item.UnitPrice.StringFixed(2)},
			{colTotal, item.TotalPrice.StringFixed(2)},
		}
		for _, v := range values {
			cell := fmt.Sprintf("%s%d", v.col, row)
			if err := file.SetCellValue(sheetName, cell, v.value); err != nil {
				return row, fmt.Errorf("failed to set %s: %w", cell, err)
			}
		}
	}
	return row, nil
}

func (e *ExcelExporter) fillTotals(file *excelize.File, po *entity.PurchaseOrder, pr *entity.Requisition, row int) error {
	lines := []struct {
		label string
		value string
	}{
		{"Subtotal", pr.TotalAmount.StringFixed(2)},
		{"Tax", pr.TaxAmount.StringFixed(2)},
		{"Grand Total (" + po.Currency + ")", po.TotalAmount.StringFixed(2)},
	}
	for i, l := range lines {
		r := row + 1 + i
		if err := file.SetCellValue(sheetName, fmt.Sprintf("%s%d", colUnitPrice, r), l.label); err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, fmt.Sprintf("%s%d", colTotal, r), l.value); err != nil {
			return err
		}
	}
	return nil
}

var _ port.PurchaseOrderExporter = (*ExcelExporter)(nil)
