// Пакет model — доменные модели Report Module.
// InspectionReport — отчёт полевой инспекции (таблица inspection_reports).
// Вложенные структуры (дефекты, замеры, изображения) хранятся в JSONB.
package model

import "time"

// Evaluation — результат одной из четырёх оценок отчёта.
type Evaluation string

const (
	EvalApproved Evaluation = "approved"
	EvalRejected Evaluation = "rejected"
	EvalRework   Evaluation = "rework"
)

// Valid проверяет, что значение оценки допустимо.
func (e Evaluation) Valid() bool {
	switch e {
	case EvalApproved, EvalRejected, EvalRework:
		return true
	}
	return false
}

// Label возвращает человекочитаемую подпись оценки (для PDF и UI).
func (e Evaluation) Label() string {
	switch e {
	case EvalApproved:
		return "Approved"
	case EvalRejected:
		return "Rejected"
	case EvalRework:
		return "Rework Needed"
	}
	return string(e)
}

// Status — производный статус отчёта. Вычисляется из четырёх оценок,
// никогда не задаётся пользователем напрямую.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPending  Status = "pending"
)

// Label возвращает подпись статуса для PDF (верхний регистр).
func (s Status) Label() string {
	switch s {
	case StatusApproved:
		return "APPROVED"
	case StatusRejected:
		return "REJECTED"
	case StatusPending:
		return "PENDING"
	}
	return string(s)
}

// DeriveStatus вычисляет производный статус из четырёх оценок.
// Приоритет: любая rejected → rejected; иначе любая rework → pending;
// иначе (все approved) → approved.
func DeriveStatus(dimensional, visual, packaging, lotTreatment Evaluation) Status {
	evals := [4]Evaluation{dimensional, visual, packaging, lotTreatment}

	for _, e := range evals {
		if e == EvalRejected {
			return StatusRejected
		}
	}
	for _, e := range evals {
		if e == EvalRework {
			return StatusPending
		}
	}
	return StatusApproved
}

// PineType — тип материала инспектируемой партии.
type PineType string

const (
	PinePine100   PineType = "pine100"
	PineCombiPine PineType = "combiPine"
	PineCombiEuca PineType = "combiEuca"
)

// Valid проверяет, что значение типа допустимо.
func (p PineType) Valid() bool {
	switch p {
	case PinePine100, PineCombiPine, PineCombiEuca:
		return true
	}
	return false
}

// Label возвращает человекочитаемую подпись типа материала.
func (p PineType) Label() string {
	switch p {
	case PinePine100:
		return "Pine 100%"
	case PineCombiPine:
		return "Combi Pine"
	case PineCombiEuca:
		return "Combi Euca"
	}
	return string(p)
}

// Defect — одна строка фиксированного списка дефектов.
// Name задаётся при создании отчёта и не меняется; пользователь
// редактирует только Description и Qty. Qty хранится строкой
// (пустая строка = не заполнено).
type Defect struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Qty         string `json:"qty"`
}

// DefectNames — фиксированный упорядоченный список имён дефектов.
// Порядок стабилен на протяжении жизни отчёта.
var DefectNames = []string{
	"Wrong thickness",
	"Dimensional problem (L or W)",
	"Peeling mark",
	"Split",
	"Knot hole too big",
	"Sound knot too big",
	"Pressing mark",
	"Face rugosity",
	"Delamination/poor bonding",
	"Damaged edges",
	"Vaneer overlap or gap",
	"Bluestain",
	"Bleed through",
	"Warping",
	"Pine crust in face or back",
	"Stamp transfer or legibility",
	"Bad skid dimension",
	"Other",
}

// DefaultDefects возвращает свежий список дефектов с пустыми
// description/qty в каноническом порядке.
func DefaultDefects() []Defect {
	defects := make([]Defect, len(DefectNames))
	for i, name := range DefectNames {
		defects[i] = Defect{Name: name}
	}
	return defects
}

// NormalizeDefects приводит клиентский список дефектов к каноническому:
// фиксированные 18 имён в фиксированном порядке, description/qty берутся
// из первой записи клиента с совпадающим именем. Неизвестные имена
// отбрасываются, клиент не может изменить состав и порядок списка.
func NormalizeDefects(client []Defect) []Defect {
	byName := make(map[string]Defect, len(client))
	for _, d := range client {
		if _, ok := byName[d.Name]; !ok {
			byName[d.Name] = d
		}
	}

	defects := make([]Defect, len(DefectNames))
	for i, name := range DefectNames {
		defects[i] = Defect{
			Name:        name,
			Description: byName[name].Description,
			Qty:         byName[name].Qty,
		}
	}
	return defects
}

// DimensionalRecords — четыре независимых списка замеров,
// каждый со своей единицей измерения (по умолчанию "mm").
type DimensionalRecords struct {
	Length         []string `json:"length"`
	LengthUnit     string   `json:"lengthUnit"`
	Width          []string `json:"width"`
	WidthUnit      string   `json:"widthUnit"`
	Thickness      []string `json:"thickness"`
	ThicknessUnit  string   `json:"thicknessUnit"`
	Squareness     []string `json:"squareness"`
	SquarenessUnit string   `json:"squarenessUnit"`
}

// ReportImages — двенадцать именованных категорий фотографий.
// Каждая категория — упорядоченный список URL загруженных файлов.
// Пустые URL не хранятся: неудачные загрузки отбрасываются.
type ReportImages struct {
	Length             []string `json:"length"`
	Width              []string `json:"width"`
	Thickness          []string `json:"thickness"`
	Square             []string `json:"square"`
	Face               []string `json:"face"`
	BackFace           []string `json:"backFace"`
	Palette            []string `json:"palette"`
	Paint              []string `json:"paint"`
	ConstructionDefect []string `json:"constructionDefect"`
	Stamp              []string `json:"stamp"`
	Edge               []string `json:"edge"`
	Height             []string `json:"height"`
}

// ImageCategories — канонический порядок категорий изображений.
// Используется для ключей asset store, PDF summary и валидации.
var ImageCategories = []string{
	"length", "width", "thickness", "square",
	"face", "backFace", "palette", "paint",
	"constructionDefect", "stamp", "edge", "height",
}

// ImageCategoryLabels — подписи категорий для PDF summary.
var ImageCategoryLabels = map[string]string{
	"length":             "Length",
	"width":              "Width",
	"thickness":          "Thickness",
	"square":             "Squareness",
	"face":               "Face",
	"backFace":           "Back Face",
	"palette":            "Palette",
	"paint":              "Paint",
	"constructionDefect": "Construction Defect",
	"stamp":              "Stamp",
	"edge":               "Edge",
	"height":             "Height/Support",
}

// ValidImageCategory проверяет, что имя категории — одно из двенадцати.
func ValidImageCategory(category string) bool {
	for _, c := range ImageCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Category возвращает список URL для категории по имени.
func (im *ReportImages) Category(name string) []string {
	switch name {
	case "length":
		return im.Length
	case "width":
		return im.Width
	case "thickness":
		return im.Thickness
	case "square":
		return im.Square
	case "face":
		return im.Face
	case "backFace":
		return im.BackFace
	case "palette":
		return im.Palette
	case "paint":
		return im.Paint
	case "constructionDefect":
		return im.ConstructionDefect
	case "stamp":
		return im.Stamp
	case "edge":
		return im.Edge
	case "height":
		return im.Height
	}
	return nil
}

// SetCategory заменяет список URL для категории по имени.
func (im *ReportImages) SetCategory(name string, urls []string) {
	switch name {
	case "length":
		im.Length = urls
	case "width":
		im.Width = urls
	case "thickness":
		im.Thickness = urls
	case "square":
		im.Square = urls
	case "face":
		im.Face = urls
	case "backFace":
		im.BackFace = urls
	case "palette":
		im.Palette = urls
	case "paint":
		im.Paint = urls
	case "constructionDefect":
		im.ConstructionDefect = urls
	case "stamp":
		im.Stamp = urls
	case "edge":
		im.Edge = urls
	case "height":
		im.Height = urls
	}
}

// Total возвращает общее количество изображений по всем категориям.
func (im *ReportImages) Total() int {
	total := 0
	for _, c := range ImageCategories {
		total += len(im.Category(c))
	}
	return total
}

// InspectionReport — отчёт полевой инспекции.
// Отчёт всегда принадлежит ровно одному пользователю (UserID).
type InspectionReport struct {
	// ID — UUID отчёта (назначается при создании)
	ID string
	// UserID — UUID владельца отчёта
	UserID string
	// InspectionDate — дата инспекции в формате yyyy-mm-dd
	InspectionDate string
	// MillSupplier — поставщик / лесопилка
	MillSupplier string
	// OrderNumber — номер заказа
	OrderNumber string
	// Piles — идентификатор штабеля (опционально)
	Piles string
	// PineType — тип материала
	PineType PineType
	// Location — место инспекции (свободный текст)
	Location string
	// ItemInspected — наименование инспектируемой позиции
	ItemInspected string

	// Четыре независимые оценки
	DimensionalEval Evaluation
	VisualEval      Evaluation
	PackagingEval   Evaluation
	LotTreatment    Evaluation

	// Defects — фиксированный список дефектов (JSONB)
	Defects []Defect
	// DimensionalRecords — списки замеров (JSONB)
	DimensionalRecords DimensionalRecords
	// Images — категории изображений (JSONB)
	Images ReportImages

	// Status — производный статус; консистентен с оценками
	// на момент последней записи
	Status Status

	// CreatedAt — время создания (назначается сервером)
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления, UpdatedAt >= CreatedAt
	UpdatedAt time.Time
}
