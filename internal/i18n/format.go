// format.go — форматирование дат согласно настройкам пользователя.
package i18n

import "strings"

// Поддерживаемые форматы отображения дат.
const (
	DateFormatDMY = "dd/mm/yyyy"
	DateFormatMDY = "mm/dd/yyyy"
	DateFormatYMD = "yyyy-mm-dd"
)

// FormatDate переводит дату из ISO-формата (yyyy-mm-dd) в выбранный
// пользователем формат отображения. Строки, не похожие на ISO-дату,
// возвращаются без изменений.
func FormatDate(isoDate, dateFormat string) string {
	parts := strings.SplitN(isoDate, "-", 3)
	if len(parts) != 3 || len(parts[0]) != 4 {
		return isoDate
	}
	year, month, day := parts[0], parts[1], parts[2]

	switch dateFormat {
	case DateFormatMDY:
		return month + "/" + day + "/" + year
	case DateFormatYMD:
		return isoDate
	default: // dd/mm/yyyy
		return day + "/" + month + "/" + year
	}
}
