package job

import "sort"

// TemplateCount is a template ranked by completed jobs.
type TemplateCount struct {
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	Count        int    `json:"count"`
}

// RankTemplates counts done jobs per template and returns the top limit
// entries, most used first. Raw-prompt jobs are skipped. A limit of zero
// returns every template.
func RankTemplates(jobs []*Job, limit int) []TemplateCount {
	counts := make(map[string]*TemplateCount)
	for _, j := range jobs {
		if j.State != StateDone || j.TemplateID == "" {
			continue
		}
		c, ok := counts[j.TemplateID]
		if !ok {
			c = &TemplateCount{TemplateID: j.TemplateID, TemplateName: j.TemplateName}
			counts[j.TemplateID] = c
		}
		c.Count++
	}

	out := make([]TemplateCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Count != out[k].Count {
			return out[i].Count > out[k].Count
		}
		return out[i].TemplateID < out[k].TemplateID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
