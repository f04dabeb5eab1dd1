// Пакет service — бизнес-логика Report Module.
// aggregate.go — чистые функции-агрегаторы над списком отчётов:
// фильтрация, помесячные корзины, топ-N группировка, сортировка по свежести.
// Функции не изменяют входной список.
package service

import (
	"sort"
	"strings"
	"time"

	"github.com/arturkryukov/phvinspect/report-module/internal/domain/model"
	"github.com/arturkryukov/phvinspect/report-module/internal/i18n"
)

// Сокращённые названия месяцев для подписей корзин.
var monthLabels = map[string][12]string{
	"pt": {"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"},
	"en": {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

// MonthBucket — одна корзина помесячной статистики.
type MonthBucket struct {
	// Label — подпись месяца для отображения (например "Mar").
	Label string `json:"label"`
	// Year и Month — календарная привязка корзины.
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	// Count — количество отчётов, созданных в этом месяце.
	Count int `json:"count"`
}

// Group — элемент топ-N группировки.
type Group struct {
	// Key — значение группировочного ключа (например имя поставщика).
	Key string `json:"key"`
	// Count — количество отчётов в группе.
	Count int `json:"count"`
}

// FilterReports возвращает подпоследовательность отчётов, проходящих
// текстовый фильтр И фильтр по дате, сохраняя исходный порядок.
//
// Текстовый фильтр: отчёт проходит если query пустой ИЛИ query в нижнем
// регистре является подстрокой одного из полей: наименование, номер заказа,
// локация, поставщик, дата инспекции (сырая и в формате отображения),
// дата создания в формате отображения.
//
// Фильтр по дате (yyyy-mm-dd): отчёт проходит если dateFilter пустой ИЛИ
// сырая дата инспекции равна фильтру ИЛИ обе даты совпадают в активном
// формате отображения (страховка от несовпадения форматов).
//
// Фильтрация чистая и идемпотентная.
func FilterReports(reports []*model.InspectionReport, query, dateFilter, dateFormat string) []*model.InspectionReport {
	query = strings.ToLower(strings.TrimSpace(query))

	result := make([]*model.InspectionReport, 0, len(reports))
	for _, r := range reports {
		if matchesQuery(r, query, dateFormat) && matchesDate(r, dateFilter, dateFormat) {
			result = append(result, r)
		}
	}
	return result
}

// matchesQuery проверяет текстовый фильтр.
func matchesQuery(r *model.InspectionReport, query, dateFormat string) bool {
	if query == "" {
		return true
	}

	createdISO := ""
	if !r.CreatedAt.IsZero() {
		createdISO = r.CreatedAt.Format("2006-01-02")
	}

	fields := []string{
		r.ItemInspected,
		r.OrderNumber,
		r.Location,
		r.MillSupplier,
		r.InspectionDate,
		i18n.FormatDate(r.InspectionDate, dateFormat),
		i18n.FormatDate(createdISO, dateFormat),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// matchesDate проверяет фильтр по дате инспекции.
// Сравнивает сырые значения и их представления в формате отображения.
func matchesDate(r *model.InspectionReport, dateFilter, dateFormat string) bool {
	if dateFilter == "" {
		return true
	}
	if r.InspectionDate == dateFilter {
		return true
	}
	return i18n.FormatDate(r.InspectionDate, dateFormat) == i18n.FormatDate(dateFilter, dateFormat)
}

// MonthlyCounts возвращает ровно 6 корзин: месяц отсчёта now и 5 предыдущих
// календарных месяцев, от старшего к новому. Отчёт попадает в корзину своего
// календарного месяца создания (по локальному календарю now). Отчёты без
// метки создания не учитываются.
func MonthlyCounts(reports []*model.InspectionReport, now time.Time, lang string) []MonthBucket {
	labels, ok := monthLabels[lang]
	if !ok {
		labels = monthLabels[i18n.DefaultLanguage]
	}

	buckets := make([]MonthBucket, 6)
	for i := 0; i < 6; i++ {
		// Первое число месяца: границы корзин выровнены по календарю
		// независимо от дня месяца в now
		m := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, i-5, 0)
		buckets[i] = MonthBucket{
			Label: labels[m.Month()-1],
			Year:  m.Year(),
			Month: m.Month(),
		}
	}

	for _, r := range reports {
		if r.CreatedAt.IsZero() {
			continue
		}
		created := r.CreatedAt.In(now.Location())
		for i := range buckets {
			if created.Year() == buckets[i].Year && created.Month() == buckets[i].Month {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// TopGroups группирует отчёты по ключу keyFn и возвращает до n групп,
// отсортированных по убыванию количества. При равенстве — порядок первого
// появления ключа во входном списке (стабильная сортировка).
// Отчёты с пустым ключом не учитываются.
func TopGroups(reports []*model.InspectionReport, keyFn func(*model.InspectionReport) string, n int) []Group {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, r := range reports {
		key := keyFn(r)
		if key == "" {
			continue
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{Key: key, Count: counts[key]})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	if n >= 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

// SortByRecency возвращает копию списка, отсортированную по убыванию времени
// создания. Отчёты без метки создания считаются самыми старыми (epoch 0).
func SortByRecency(reports []*model.InspectionReport) []*model.InspectionReport {
	sorted := make([]*model.InspectionReport, len(reports))
	copy(sorted, reports)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

// StatusTotals подсчитывает количество отчётов по каждому статусу.
func StatusTotals(reports []*model.InspectionReport) map[model.Status]int {
	totals := map[model.Status]int{
		model.StatusApproved: 0,
		model.StatusRejected: 0,
		model.StatusPending:  0,
	}
	for _, r := range reports {
		totals[r.Status]++
	}
	return totals
}
