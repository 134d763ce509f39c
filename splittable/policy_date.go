package splittable

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/ceyewan/splitdb/xerrors"
)

// DatePolicy 内置的按日期分表策略
//
// 后缀格式：
//
//	year    _2006
//	season  _2006Q1
//	month   _200601
//	week    _2006W01（ISO 周）
//	day     _20060102
//
// 分表键的值通过 cast.ToTimeInDefaultLocationE 转换，不带时区的字符串按 Location 解析；
// nil 或零值表示 Location 下的当前周期。转换后按值自身的日历日期取周期，
// time.Time 不会再换算到 Location。
type DatePolicy struct {
	// Now 当前时间，为空时使用 time.Now
	Now func() time.Time
	// Location 解析字符串和计算当前周期使用的时区，为空时使用 time.Local
	Location *time.Location
	// MaxPeriods 区间最多展开的周期数，<= 0 时不限制
	// 超出时 CandidateTables 返回 ErrRangeTooWide，读路径改为只按区间筛选已知分表
	MaxPeriods int
}

func (p *DatePolicy) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

func (p *DatePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now().In(p.location())
	}
	return time.Now().In(p.location())
}

// toDate 将分表键的值转换为 UTC 的日历日期
func (p *DatePolicy) toDate(v any) (time.Time, error) {
	var t time.Time
	switch val := v.(type) {
	case nil:
		t = p.now()
	case time.Time:
		t = val
	case *time.Time:
		if val != nil {
			t = *val
		}
	default:
		var err error
		t, err = cast.ToTimeInDefaultLocationE(v, p.location())
		if err != nil {
			return time.Time{}, withCause(ErrInvalidSplitValue, err, "convert %v to time", v)
		}
	}
	if t.IsZero() {
		t = p.now()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func (p *DatePolicy) CandidateTables(root string, spec EntitySpec, b Behavior) ([]string, error) {
	g := spec.Granularity
	if !g.IsDate() {
		return nil, xerrors.Wrapf(ErrConfiguration, "date policy cannot serve granularity %s", g)
	}

	switch b.Mode {
	case Range:
		start, end, err := p.bounds(g, b)
		if err != nil {
			return nil, err
		}
		var tables []string
		for t := start; !t.After(end); t = nextPeriod(g, t) {
			if p.MaxPeriods > 0 && len(tables) >= p.MaxPeriods {
				return nil, withCause(ErrInvalidSplitValue, ErrRangeTooWide, "range %s..%s spans more than %d %s periods",
					start.Format(time.DateOnly), end.Format(time.DateOnly), p.MaxPeriods, g)
			}
			tables = append(tables, root+formatPeriod(g, t))
		}
		return tables, nil

	case Precision:
		values := b.Values
		if len(values) == 0 {
			values = []any{nil}
		}
		seen := make(map[string]struct{}, len(values))
		tables := make([]string, 0, len(values))
		for _, v := range values {
			d, err := p.toDate(v)
			if err != nil {
				return nil, err
			}
			tables = appendUnique(tables, seen, root+formatPeriod(g, periodStart(g, d)))
		}
		return tables, nil

	default:
		d, _ := p.toDate(nil)
		return []string{root + formatPeriod(g, periodStart(g, d))}, nil
	}
}

// bounds 返回区间首尾周期的起点，只有一个值时区间为 [v, now]，首尾颠倒时自动交换
func (p *DatePolicy) bounds(g Granularity, b Behavior) (time.Time, time.Time, error) {
	var from, to any
	switch len(b.Values) {
	case 0:
	case 1:
		from = b.Values[0]
	default:
		from, to = b.Values[0], b.Values[1]
	}
	start, err := p.toDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := p.toDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		start, end = end, start
	}
	return periodStart(g, start), periodStart(g, end), nil
}

func (p *DatePolicy) FinalSelection(root string, spec EntitySpec, b Behavior, known, candidates []string) []string {
	switch b.Mode {
	case AllShards:
		return sortedUnique(append([]string(nil), known...))
	case Precision:
		return intersect(known, candidates)
	}

	g := spec.Granularity
	start, end, err := p.bounds(g, b)
	if err != nil {
		return intersect(known, candidates)
	}
	out := make([]string, 0, len(known))
	for _, table := range known {
		suffix, ok := splitRoot(table, root)
		if !ok {
			continue
		}
		// 只认实体自身粒度的后缀，归档年表、日表等同前缀的表不参与
		t, ok := parsePeriod(g, suffix)
		if !ok {
			continue
		}
		if !t.Before(start) && !t.After(end) {
			out = append(out, table)
		}
	}
	return sortedUnique(out)
}

func periodStart(g Granularity, t time.Time) time.Time {
	y, m, d := t.Date()
	switch g {
	case GranularityYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	case GranularitySeason:
		return time.Date(y, ((m-1)/3)*3+1, 1, 0, 0, 0, 0, time.UTC)
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

func nextPeriod(g Granularity, t time.Time) time.Time {
	switch g {
	case GranularityYear:
		return t.AddDate(1, 0, 0)
	case GranularitySeason:
		return t.AddDate(0, 3, 0)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// formatPeriod t 必须是周期起点
func formatPeriod(g Granularity, t time.Time) string {
	switch g {
	case GranularityYear:
		return fmt.Sprintf("_%04d", t.Year())
	case GranularitySeason:
		return fmt.Sprintf("_%04dQ%d", t.Year(), (int(t.Month())-1)/3+1)
	case GranularityMonth:
		return t.Format("_200601")
	case GranularityWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("_%04dW%02d", y, w)
	default:
		return t.Format("_20060102")
	}
}

// parsePeriod 解析 formatPeriod 生成的后缀，返回周期起点
func parsePeriod(g Granularity, suffix string) (time.Time, bool) {
	if len(suffix) < 2 || suffix[0] != '_' {
		return time.Time{}, false
	}
	s := suffix[1:]
	switch g {
	case GranularityYear:
		if len(s) != 4 {
			return time.Time{}, false
		}
		y, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), true

	case GranularitySeason:
		if len(s) != 6 || (s[4] != 'Q' && s[4] != 'q') {
			return time.Time{}, false
		}
		y, err := strconv.Atoi(s[:4])
		if err != nil || s[5] < '1' || s[5] > '4' {
			return time.Time{}, false
		}
		q := int(s[5] - '0')
		return time.Date(y, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true

	case GranularityMonth:
		if len(s) != 6 {
			return time.Time{}, false
		}
		t, err := time.Parse("200601", s)
		return t, err == nil

	case GranularityWeek:
		if len(s) != 7 || (s[4] != 'W' && s[4] != 'w') {
			return time.Time{}, false
		}
		y, err1 := strconv.Atoi(s[:4])
		w, err2 := strconv.Atoi(s[5:])
		if err1 != nil || err2 != nil || w < 1 || w > 53 {
			return time.Time{}, false
		}
		jan4 := time.Date(y, 1, 4, 0, 0, 0, 0, time.UTC)
		monday := periodStart(GranularityWeek, jan4).AddDate(0, 0, (w-1)*7)
		if iy, iw := monday.ISOWeek(); iy != y || iw != w {
			return time.Time{}, false
		}
		return monday, true

	case GranularityDay:
		if len(s) != 8 {
			return time.Time{}, false
		}
		t, err := time.Parse("20060102", s)
		return t, err == nil
	}
	return time.Time{}, false
}
