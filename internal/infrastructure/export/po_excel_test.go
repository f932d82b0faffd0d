package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func samplePO() (*entity.PurchaseOrder, *entity.Requisition) {
	pr := &entity.Requisition{
		ID:            7,
		PRNo:          "PR-2026-IT-001",
		Department:    "IT",
		Purpose:       "Laptops for new hires",
		VendorName:    "Tech Supplies Sdn Bhd",
		VendorContact: "Ali",
		TotalAmount:   decimal.RequireFromString("5000.00"),
		TaxAmount:     decimal.RequireFromString("300.00"),
		GrandTotal:    decimal.RequireFromString("5300.00"),
		Currency:      "MYR",
		Items: []entity.LineItem{
			{ItemNo: 1, Description: "Laptop", Quantity: 2, UnitOfMeasure: "UNIT",
				UnitPrice: decimal.RequireFromString("2000"), TotalPrice: decimal.RequireFromString("4000")},
			{ItemNo: 2, Description: "Dock", Quantity: 4, UnitOfMeasure: "UNIT",
				UnitPrice: decimal.RequireFromString("250"), TotalPrice: decimal.RequireFromString("1000")},
		},
	}
	po := &entity.PurchaseOrder{
		ID:          3,
		PRID:        pr.ID,
		PONo:        "PO-2026-0001",
		PODate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		VendorName:  pr.VendorName,
		TotalAmount: pr.GrandTotal,
		Currency:    "MYR",
	}
	return po, pr
}

func TestExcelExporter_Export(t *testing.T) {
	exporter := NewExcelExporter("Acme Holdings", zap.NewNop())
	po, pr := samplePO()

	data, err := exporter.Export(po, pr)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()

	get := func(cell string) string {
		v, err := file.GetCellValue(sheetName, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "PURCHASE ORDER", get(cellTitle))
	assert.Equal(t, "Acme Holdings", get(cellCompany))
	assert.Equal(t, "PO-2026-0001", get(cellPONo))
	assert.Equal(t, "2026-03-01", get(cellPODate))
	assert.Equal(t, "PR-2026-IT-001", get(cellPRNo))
	assert.Equal(t, "Tech Supplies Sdn Bhd", get(cellVendor))

	assert.Equal(t, "Laptop", get("B10"))
	assert.Equal(t, "2000.00", get("E10"))
	assert.Equal(t, "Dock", get("B11"))
	assert.Equal(t, "1000.00", get("F11"))

	assert.Equal(t, "Subtotal", get("E13"))
	assert.Equal(t, "5000.00", get("F13"))
	assert.Equal(t, "300.00", get("F14"))
	assert.Equal(t, "5300.00", get("F15"))
}

func TestExcelExporter_RequiresInputs(t *testing.T) {
	exporter := NewExcelExporter("", zap.NewNop())
	_, pr := samplePO()

	_, err := exporter.Export(nil, pr)
	assert.Error(t, err)
}

func TestExcelExporter_Metadata(t *testing.T) {
	exporter := NewExcelExporter("", zap.NewNop())
	assert.Equal(t, ".xlsx", exporter.Extension())
	assert.Contains(t, exporter.ContentType(), "spreadsheetml")
}
