package bom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/auth"
	"imalat-backend/internal/config"
	"imalat-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var exportHeaders = []string{"Seviye", "Yol", "Kalem Kodu", "Kalem Adı", "Birim", "Birim Başına", "Satır Miktarı", "Gereken", "Mevcut Stok"}

// SheetRow: Yükleme dosyasındaki tek satır (parent_code, child_code, quantity_required, level_no, notes).
type SheetRow struct {
	Line             int
	ParentCode       string
	ChildCode        string
	QuantityRequired decimal.Decimal
	LevelNo          int
	Notes            string
}

// WriteExplosion: Explosion sonucunu tek sayfalık xlsx olarak yazar.
func WriteExplosion(exp *Explosion) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "BOM"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("%s - %s (%s %s)", exp.ParentItem.ItemCode, exp.ParentItem.ItemName, exp.Quantity.String(), exp.ParentItem.Unit)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for r, line := range exp.Lines {
		values := []any{
			line.LevelNo,
			line.Path,
			line.ItemCode,
			line.ItemName,
			line.Unit,
			line.PerUnitQuantity.String(),
			line.QuantityRequired.String(),
			line.RequiredQuantity.String(),
			line.CurrentStock.String(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+4)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ParseSheet: İlk sayfayı okur. İlk satır başlıksa atlanır, boş satırlar geçilir.
func ParseSheet(r io.Reader) ([]SheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperror.NewValidation("Excel dosyası okunamadı: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperror.NewValidation("Excel dosyasında sheet bulunamadı")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperror.NewValidation("Sheet okunamadı: %v", err)
	}

	start := 0
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "parent_code") {
		start = 1
	}

	out := make([]SheetRow, 0, len(rows))
	for i := start; i < len(rows); i++ {
		row := rows[i]
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		if cell(0) == "" && cell(1) == "" {
			continue
		}

		line := i + 1
		if cell(0) == "" || cell(1) == "" {
			return nil, apperror.NewValidation("%d. satır: parent_code ve child_code zorunlu", line)
		}
		qty, err := decimal.NewFromString(cell(2))
		if err != nil {
			return nil, apperror.NewValidation("%d. satır: quantity_required sayı değil (%q)", line, cell(2))
		}
		level := 1
		if v := cell(3); v != "" {
			if level, err = strconv.Atoi(v); err != nil {
				return nil, apperror.NewValidation("%d. satır: level_no tam sayı değil (%q)", line, v)
			}
		}

		out = append(out, SheetRow{
			Line:             line,
			ParentCode:       cell(0),
			ChildCode:        cell(1),
			QuantityRequired: qty,
			LevelNo:          level,
			Notes:            cell(4),
		})
	}
	if len(out) == 0 {
		return nil, apperror.NewValidation("Excel dosyası boş")
	}
	return out, nil
}

// ImportRows: Tüm satırlar tek transaction'da, POST /api/bom ile aynı kurallarla eklenir.
func ImportRows(ctx context.Context, tx *gorm.DB, rows []SheetRow, userID uint) ([]models.BOMEdge, error) {
	codes := make([]string, 0, len(rows)*2)
	for _, r := range rows {
		codes = append(codes, r.ParentCode, r.ChildCode)
	}
	var items []models.Item
	if err := tx.WithContext(ctx).Where("item_code IN ?", codes).Find(&items).Error; err != nil {
		return nil, apperror.FromDB(err)
	}
	byCode := make(map[string]uint, len(items))
	for _, it := range items {
		byCode[it.ItemCode] = it.ID
	}

	created := make([]models.BOMEdge, 0, len(rows))
	for _, r := range rows {
		parentID, ok := byCode[r.ParentCode]
		if !ok {
			return nil, apperror.NewValidation("%d. satır: kalem kodu bulunamadı: %s", r.Line, r.ParentCode)
		}
		childID, ok := byCode[r.ChildCode]
		if !ok {
			return nil, apperror.NewValidation("%d. satır: kalem kodu bulunamadı: %s", r.Line, r.ChildCode)
		}

		edge, err := CreateEdge(ctx, tx, CreateEdgeRequest{
			ParentItemID:     parentID,
			ChildItemID:      childID,
			QuantityRequired: r.QuantityRequired,
			LevelNo:          r.LevelNo,
			Notes:            r.Notes,
		}, userID)
		if err != nil {
			return nil, fmt.Errorf("%d. satır: %w", r.Line, err)
		}
		created = append(created, *edge)
	}
	return created, nil
}

// GET /api/bom/export?parent_item_id=1&quantity=1
func ExportHandler(db *gorm.DB, resolver *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.QueryInt("parent_item_id")
		if id <= 0 {
			return apperror.NewFieldValidation(map[string]string{"parent_item_id": "required"})
		}
		qty, err := quantityQuery(c)
		if err != nil {
			return err
		}

		exp, err := Explode(c.UserContext(), db, resolver, uint(id), qty)
		if err != nil {
			return err
		}
		f, err := WriteExplosion(exp)
		if err != nil {
			return err
		}
		defer f.Close()

		buf, err := f.WriteToBuffer()
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="bom_%s.xlsx"`, exp.ParentItem.ItemCode))
		return c.Send(buf.Bytes())
	}
}

// POST /api/bom/upload (sadece admin, multipart "file")
func UploadHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperror.NewValidation("Dosya yüklenemedi: %v", err)
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperror.NewValidation("Sadece .xlsx dosyaları yüklenebilir")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fmt.Errorf("dosya açılamadı: %w", err)
		}
		defer file.Close()

		rows, err := ParseSheet(file)
		if err != nil {
			return err
		}

		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return tx.Error
		}
		created, err := ImportRows(c.UserContext(), tx, rows, auth.CurrentUserID(c))
		if err != nil {
			tx.Rollback()
			var ve *apperror.ValidationError
			if !errors.As(err, &ve) {
				config.LogError(config.GetLogger(), "bom", "UploadHandler", fileHeader.Filename, nil, err)
			}
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return apperror.FromDB(err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("%d BOM satırı eklendi", len(created)),
			"data":    fiber.Map{"imported": len(created)},
		})
	}
}
