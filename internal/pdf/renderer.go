// Пакет pdf — генерация печатного PDF-документа отчёта инспекции.
// Формат A4 portrait: шапка со статусом и логотипом, шесть секций
// с маркерными полосами, нижний колонтитул "Page X of Y" на каждой странице.
package pdf

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
)

// Метрики генерации PDF.
var (
	pdfGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rm_pdf_generated_total",
			Help: "Общее количество сгенерированных PDF-документов",
		},
		[]string{"result"},
	)

	pdfRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rm_pdf_render_duration_seconds",
			Help:    "Длительность генерации одного PDF-документа в секундах",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Цветовая схема документа (RGB).
var (
	brandColor  = [3]int{30, 30, 30}
	accentColor = [3]int{255, 107, 53}
	lightGray   = [3]int{245, 245, 245}
	darkText    = [3]int{30, 30, 30}
	mutedText   = [3]int{100, 100, 100}

	greenColor = [3]int{39, 174, 96}
	redColor   = [3]int{231, 76, 60}
	amberColor = [3]int{243, 156, 18}
)

// Геометрия страницы (мм).
const (
	pageMargin   = 14.0
	headerHeight = 46.0
	footerHeight = 12.0
)

// Renderer — генератор PDF-документов отчётов.
type Renderer struct {
	// logoPath — путь к файлу логотипа (RM_PDF_LOGO_PATH); пустой — без логотипа
	logoPath string
	logger   *slog.Logger
	// now — источник времени для колонтитула, подменяется в тестах
	now func() time.Time
}

// NewRenderer создаёт Renderer.
func NewRenderer(logoPath string, logger *slog.Logger) *Renderer {
	return &Renderer{
		logoPath: logoPath,
		logger:   logger.With(slog.String("component", "pdf")),
		now:      time.Now,
	}
}

// FileName возвращает детерминированное имя файла документа:
// report_<orderNumber-или-id>_<inspectionDate>.pdf,
// символы вне [A-Za-z0-9_.-] заменяются на подчёркивание.
func FileName(report *model.InspectionReport) string {
	ident := report.OrderNumber
	if ident == "" {
		ident = report.ID
	}
	name := fmt.Sprintf("report_%s_%s.pdf", ident, report.InspectionDate)

	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Render генерирует PDF-документ отчёта.
// showLogo управляется настройкой пользователя pdfLogoVisible;
// ошибка загрузки логотипа не прерывает генерацию.
func (r *Renderer) Render(report *model.InspectionReport, showLogo bool) ([]byte, error) {
	start := time.Now()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AliasNbPages("")

	pageW, pageH := doc.GetPageSize()
	contentW := pageW - pageMargin*2

	// Колонтитул на каждой странице: дата генерации слева, номер справа
	generated := r.now().Format("02/01/2006")
	doc.SetFooterFunc(func() {
		doc.SetFillColor(lightGray[0], lightGray[1], lightGray[2])
		doc.Rect(0, pageH-footerHeight, pageW, footerHeight, "F")
		doc.SetFillColor(accentColor[0], accentColor[1], accentColor[2])
		doc.Rect(0, pageH-footerHeight, pageW, 0.5, "F")
		doc.SetFont("Helvetica", "", 7.5)
		doc.SetTextColor(mutedText[0], mutedText[1], mutedText[2])
		doc.Text(pageMargin, pageH-4.5,
			fmt.Sprintf("PHV Inspection System  -  Generated on %s", generated))
		pageLabel := fmt.Sprintf("Page %d of {nb}", doc.PageNo())
		doc.Text(pageW-pageMargin-doc.GetStringWidth(pageLabel), pageH-4.5, pageLabel)
	})
	doc.SetAutoPageBreak(true, footerHeight+8)
	doc.AddPage()

	r.drawHeader(doc, report, pageW, showLogo)

	y := headerHeight + 10

	// Basic Information
	y = sectionTitle(doc, "Basic Information", y)
	y = r.drawBasicInfo(doc, report, y, contentW)
	y += 4

	// Evaluations
	y = checkNewPage(doc, y, 40, pageH)
	y = sectionTitle(doc, "Evaluations", y)
	y = r.drawEvaluations(doc, report, y, contentW)

	// Defects
	y = checkNewPage(doc, y, 30, pageH)
	y = sectionTitle(doc, "Defects", y)
	y = r.drawDefects(doc, report, y, contentW, pageH)

	// Dimensional Records
	y = checkNewPage(doc, y, 40, pageH)
	y = sectionTitle(doc, "Dimensional Records", y)
	y = r.drawDimensionalRecords(doc, report, y, contentW, pageH)

	// Image Summary
	y = checkNewPage(doc, y, 30, pageH)
	y = sectionTitle(doc, "Image Summary", y)
	r.drawImageSummary(doc, report, y, contentW, pageH)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		pdfGeneratedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка генерации PDF: %w", err)
	}

	pdfGeneratedTotal.WithLabelValues("ok").Inc()
	pdfRenderDuration.Observe(time.Since(start).Seconds())
	return buf.Bytes(), nil
}

// drawHeader рисует шапку: тёмный фон, акцентная полоса, заголовок,
// бейдж статуса, строка-сводка и логотип в правом верхнем углу.
func (r *Renderer) drawHeader(doc *fpdf.Fpdf, report *model.InspectionReport, pageW float64, showLogo bool) {
	doc.SetFillColor(brandColor[0], brandColor[1], brandColor[2])
	doc.Rect(0, 0, pageW, headerHeight, "F")
	doc.SetFillColor(accentColor[0], accentColor[1], accentColor[2])
	doc.Rect(0, headerHeight, pageW, 2, "F")

	if showLogo {
		r.drawLogo(doc, pageW)
	}

	doc.SetFont("Helvetica", "B", 18)
	doc.SetTextColor(255, 255, 255)
	doc.Text(pageMargin, 18, "INSPECTION REPORT")

	// Бейдж статуса
	badge := statusColor(report.Status)
	doc.SetFillColor(badge[0], badge[1], badge[2])
	doc.RoundedRect(pageMargin, 23, 40, 12, 3, "1234", "F")
	doc.SetFont("Helvetica", "B", 8)
	doc.SetTextColor(255, 255, 255)
	label := report.Status.Label()
	doc.Text(pageMargin+20-doc.GetStringWidth(label)/2, 30.5, label)

	// Строка-сводка
	doc.SetFont("Helvetica", "", 8.5)
	doc.SetTextColor(180, 180, 180)
	doc.Text(pageMargin+44, 30.5,
		fmt.Sprintf("Order: %s  -  %s  -  %s", report.OrderNumber, report.InspectionDate, report.Location))
}

// drawLogo встраивает логотип. Любая ошибка логируется и пропускается:
// документ генерируется без логотипа.
func (r *Renderer) drawLogo(doc *fpdf.Fpdf, pageW float64) {
	if r.logoPath == "" {
		return
	}

	data, err := os.ReadFile(r.logoPath)
	if err != nil {
		r.logger.Warn("Логотип недоступен, PDF без логотипа", slog.String("error", err.Error()))
		return
	}

	imageType := ""
	switch strings.ToLower(filepath.Ext(r.logoPath)) {
	case ".png":
		imageType = "PNG"
	case ".jpg", ".jpeg":
		imageType = "JPG"
	default:
		r.logger.Warn("Неподдерживаемый формат логотипа", slog.String("path", r.logoPath))
		return
	}
	opts := fpdf.ImageOptions{ImageType: imageType}

	// Пробная регистрация на отдельном документе: повреждённый файл
	// не должен портить основной документ (ошибки fpdf — sticky)
	probe := fpdf.New("P", "mm", "A4", "")
	probe.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if probe.Err() {
		r.logger.Warn("Логотип повреждён, PDF без логотипа", slog.String("path", r.logoPath))
		return
	}

	const logoSize = 34.0
	doc.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	doc.ImageOptions("logo", pageW-pageMargin-logoSize, 6, logoSize, logoSize, false, opts, 0, "")
}

// sectionTitle рисует маркерную полосу и заголовок секции, возвращает новый y.
func sectionTitle(doc *fpdf.Fpdf, title string, y float64) float64 {
	doc.SetFillColor(accentColor[0], accentColor[1], accentColor[2])
	doc.Rect(pageMargin, y, 3, 6, "F")
	doc.SetFont("Helvetica", "B", 11)
	doc.SetTextColor(darkText[0], darkText[1], darkText[2])
	doc.Text(pageMargin+6, y+5, title)
	return y + 11
}

// checkNewPage начинает новую страницу, если до нижнего поля осталось
// меньше needed мм. Проверка перед каждым блоком, порог консервативный.
func checkNewPage(doc *fpdf.Fpdf, y, needed, pageH float64) float64 {
	if y+needed > pageH-20 {
		doc.AddPage()
		return 20
	}
	return y
}

// drawBasicInfo — сетка ярлык/значение в 3 колонки; высота ряда равна
// самой высокой ячейке, значения переносятся по ширине колонки.
func (r *Renderer) drawBasicInfo(doc *fpdf.Fpdf, report *model.InspectionReport, y, contentW float64) float64 {
	col := contentW / 3
	rows := [][6]string{
		{"Item Inspected", report.ItemInspected, "Mill / Supplier", report.MillSupplier, "Pine Type", report.PineType.Label()},
		{"Inspection Date", report.InspectionDate, "Order Number", report.OrderNumber, "Location", report.Location},
		{"Piles", orDash(report.Piles), "", "", "", ""},
	}

	for _, row := range rows {
		h1 := labelValue(doc, row[0], row[1], pageMargin, y, col)
		h2 := 0.0
		if row[2] != "" {
			h2 = labelValue(doc, row[2], row[3], pageMargin+col, y, col)
		}
		h3 := 0.0
		if row[4] != "" {
			h3 = labelValue(doc, row[4], row[5], pageMargin+col*2, y, col)
		}
		y += maxOf(h1, h2, h3) + 5
	}
	return y
}

// labelValue рисует пару ярлык/значение, возвращает высоту значения.
func labelValue(doc *fpdf.Fpdf, label, value string, x, y, colW float64) float64 {
	doc.SetFont("Helvetica", "", 8)
	doc.SetTextColor(mutedText[0], mutedText[1], mutedText[2])
	doc.Text(x, y, label)

	doc.SetFont("Helvetica", "B", 9)
	doc.SetTextColor(darkText[0], darkText[1], darkText[2])
	lines := doc.SplitText(orDash(value), colW-2)
	for i, line := range lines {
		doc.Text(x, y+4+float64(i)*4.5, line)
	}
	return float64(len(lines)) * 4.5
}

// drawEvaluations — таблица из двух колонок, результат окрашен по исходу.
func (r *Renderer) drawEvaluations(doc *fpdf.Fpdf, report *model.InspectionReport, y, contentW float64) float64 {
	type evalRow struct {
		name string
		eval model.Evaluation
	}
	rows := []evalRow{
		{"Dimensional Evaluation", report.DimensionalEval},
		{"Visual Evaluation", report.VisualEval},
		{"Packaging & Overall", report.PackagingEval},
		{"Lot Treatment", report.LotTreatment},
	}

	w0, w1 := contentW*0.65, contentW*0.35
	y = tableHead(doc, y, []string{"Evaluation", "Result"}, []float64{w0, w1})

	const rowH = 9.0
	for _, row := range rows {
		doc.SetDrawColor(200, 200, 200)
		doc.SetFont("Helvetica", "", 9)
		doc.SetTextColor(darkText[0], darkText[1], darkText[2])
		doc.SetXY(pageMargin, y)
		doc.CellFormat(w0, rowH, row.name, "1", 0, "L", false, 0, "")

		c := evalColor(row.eval)
		doc.SetFont("Helvetica", "B", 9)
		doc.SetTextColor(c[0], c[1], c[2])
		doc.CellFormat(w1, rowH, row.eval.Label(), "1", 0, "C", false, 0, "")
		y += rowH
	}
	return y + 8
}

// drawDefects — таблица дефектов с ненулевым количеством;
// без таковых — курсивная строка-заглушка.
func (r *Renderer) drawDefects(doc *fpdf.Fpdf, report *model.InspectionReport, y, contentW, pageH float64) float64 {
	withQty := make([]model.Defect, 0, len(report.Defects))
	for _, d := range report.Defects {
		if d.Qty != "" && d.Qty != "0" {
			withQty = append(withQty, d)
		}
	}

	if len(withQty) == 0 {
		return italicLine(doc, "No defects recorded.", y)
	}

	widths := []float64{contentW * 0.40, contentW * 0.45, contentW * 0.15}
	y = tableHead(doc, y, []string{"Defect", "Description", "Qty"}, widths)

	for i, d := range withQty {
		cells := []string{d.Name, orDash(d.Description), d.Qty}
		aligns := []string{"L", "L", "C"}
		y = tableRow(doc, y, cells, widths, aligns, i%2 == 1, pageH)
	}
	return y + 8
}

// drawDimensionalRecords — таблица категорий замеров, в которых есть хотя бы
// одно непустое значение; пустые категории опускаются целиком.
func (r *Renderer) drawDimensionalRecords(doc *fpdf.Fpdf, report *model.InspectionReport, y, contentW, pageH float64) float64 {
	type dim struct {
		label  string
		values []string
		unit   string
	}
	dims := []dim{
		{"Length", report.DimensionalRecords.Length, report.DimensionalRecords.LengthUnit},
		{"Width", report.DimensionalRecords.Width, report.DimensionalRecords.WidthUnit},
		{"Thickness", report.DimensionalRecords.Thickness, report.DimensionalRecords.ThicknessUnit},
		{"Squareness", report.DimensionalRecords.Squareness, report.DimensionalRecords.SquarenessUnit},
	}

	type dimRow struct {
		label, unit, joined string
	}
	var rows []dimRow
	for _, d := range dims {
		filled := make([]string, 0, len(d.values))
		for _, v := range d.values {
			if strings.TrimSpace(v) != "" {
				filled = append(filled, v)
			}
		}
		if len(filled) == 0 {
			continue
		}
		unit := d.unit
		if unit == "" {
			unit = "mm"
		}
		rows = append(rows, dimRow{d.label, unit, strings.Join(filled, " | ")})
	}

	if len(rows) == 0 {
		return italicLine(doc, "No dimensional records.", y)
	}

	widths := []float64{contentW * 0.20, contentW * 0.15, contentW * 0.65}
	y = tableHead(doc, y, []string{"Dimension", "Unit", "Measurements"}, widths)
	for _, row := range rows {
		y = tableRow(doc, y, []string{row.label, row.unit, row.joined}, widths,
			[]string{"L", "C", "L"}, false, pageH)
	}
	return y + 8
}

// drawImageSummary — таблица двенадцати категорий изображений
// с итоговой строкой.
func (r *Renderer) drawImageSummary(doc *fpdf.Fpdf, report *model.InspectionReport, y, contentW, pageH float64) float64 {
	widths := []float64{contentW * 0.70, contentW * 0.30}
	y = tableHead(doc, y, []string{"Category", "Images Uploaded"}, widths)

	for i, category := range model.ImageCategories {
		count := len(report.Images.Category(category))
		countLabel := "None"
		if count > 0 {
			countLabel = fmt.Sprintf("%d image(s)", count)
		}
		y = tableRow(doc, y, []string{model.ImageCategoryLabels[category], countLabel},
			widths, []string{"L", "C"}, i%2 == 1, pageH)
	}

	// Итоговая строка
	doc.SetFillColor(lightGray[0], lightGray[1], lightGray[2])
	doc.SetFont("Helvetica", "B", 9)
	doc.SetTextColor(darkText[0], darkText[1], darkText[2])
	doc.SetXY(pageMargin, y)
	doc.CellFormat(widths[0], 9, "Total", "1", 0, "L", true, 0, "")
	doc.CellFormat(widths[1], 9, fmt.Sprintf("%d image(s)", report.Images.Total()), "1", 0, "C", true, 0, "")
	return y + 9 + 8
}

// tableHead рисует строку заголовка таблицы, возвращает новый y.
func tableHead(doc *fpdf.Fpdf, y float64, headers []string, widths []float64) float64 {
	const headH = 9.0
	doc.SetFillColor(brandColor[0], brandColor[1], brandColor[2])
	doc.SetTextColor(255, 255, 255)
	doc.SetFont("Helvetica", "B", 9)
	doc.SetDrawColor(200, 200, 200)
	doc.SetXY(pageMargin, y)
	for i, h := range headers {
		doc.CellFormat(widths[i], headH, h, "1", 0, "L", true, 0, "")
	}
	return y + headH
}

// tableRow рисует одну строку таблицы с учётом переноса страницы.
func tableRow(doc *fpdf.Fpdf, y float64, cells []string, widths []float64, aligns []string, striped bool, pageH float64) float64 {
	const rowH = 9.0
	if y+rowH > pageH-footerHeight-8 {
		doc.AddPage()
		y = 20
	}

	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(darkText[0], darkText[1], darkText[2])
	doc.SetDrawColor(200, 200, 200)
	if striped {
		doc.SetFillColor(lightGray[0], lightGray[1], lightGray[2])
	}
	doc.SetXY(pageMargin, y)
	for i, cell := range cells {
		doc.CellFormat(widths[i], rowH, cell, "1", 0, aligns[i], striped, 0, "")
	}
	return y + rowH
}

// italicLine рисует курсивную строку-заглушку, возвращает новый y.
func italicLine(doc *fpdf.Fpdf, text string, y float64) float64 {
	doc.SetFont("Helvetica", "I", 9)
	doc.SetTextColor(mutedText[0], mutedText[1], mutedText[2])
	doc.Text(pageMargin, y, text)
	return y + 8
}

// statusColor возвращает цвет по статусу: зелёный/красный/янтарный.
func statusColor(s model.Status) [3]int {
	switch s {
	case model.StatusApproved:
		return greenColor
	case model.StatusRejected:
		return redColor
	default:
		return amberColor
	}
}

// evalColor возвращает цвет по результату оценки.
func evalColor(e model.Evaluation) [3]int {
	switch e {
	case model.EvalApproved:
		return greenColor
	case model.EvalRejected:
		return redColor
	default:
		return amberColor
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func maxOf(values ...float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
