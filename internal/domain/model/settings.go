// settings.go — пользовательские настройки отображения.
// Хранятся одной JSONB-записью на пользователя; при чтении
// сохранённые поля накладываются на значения по умолчанию.
package model

// Settings — настройки отображения и поведения системы.
type Settings struct {
	// Language — язык интерфейса: pt, en
	Language string `json:"language"`
	// DefaultUnit — единица измерения по умолчанию: mm, in, cm
	DefaultUnit string `json:"defaultUnit"`
	// DateFormat — формат отображения дат: dd/mm/yyyy, mm/dd/yyyy, yyyy-mm-dd
	DateFormat string `json:"dateFormat"`
	// PDFLogoVisible — показывать логотип в шапке экспортированных PDF
	PDFLogoVisible bool `json:"pdfLogoVisible"`
	// CompactCards — компактный режим карточек в листинге
	CompactCards bool `json:"compactCards"`
	// DefaultPineType — тип материала, предвыбранный в новом отчёте
	DefaultPineType PineType `json:"defaultPineType"`
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		Language:        "pt",
		DefaultUnit:     "mm",
		DateFormat:      "dd/mm/yyyy",
		PDFLogoVisible:  true,
		CompactCards:    false,
		DefaultPineType: PinePine100,
	}
}

// ValidLanguage проверяет поддерживаемый язык.
func ValidLanguage(lang string) bool {
	return lang == "pt" || lang == "en"
}

// ValidUnit проверяет поддерживаемую единицу измерения.
func ValidUnit(unit string) bool {
	return unit == "mm" || unit == "in" || unit == "cm"
}

// ValidDateFormat проверяет поддерживаемый формат даты.
func ValidDateFormat(format string) bool {
	switch format {
	case "dd/mm/yyyy", "mm/dd/yyyy", "yyyy-mm-dd":
		return true
	}
	return false
}
