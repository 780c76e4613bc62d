package audit

import (
	"fmt"
	"html"
	"strings"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// CloseDateLayout is used in the closing transition line.
const CloseDateLayout = "2006-01-02 15:04:05"

// Hook compares one concern of the pre- and post-image.
type Hook func(before, after *Snapshot) []string

// FieldChange is the structured form of a field line.
type FieldChange struct {
	Key string `json:"key"`
	Old string `json:"old"`
	New string `json:"new"`
}

// Result is the outcome of a diff.
type Result struct {
	Lines  []string      `json:"lines"`
	Fields []FieldChange `json:"fields,omitempty"`
}

// Empty reports whether nothing changed.
func (r Result) Empty() bool { return len(r.Lines) == 0 }

// Body renders the combined notification entry.
func (r Result) Body() string {
	return "<strong>Changes:</strong><br/>" + strings.Join(r.Lines, "<br/>")
}

// Chain is the fixed order in which concerns are reported.
var Chain = []Hook{
	closingHook,
	totalHook,
	accessoriesHook,
	loanerHook,
	credentialsHook,
	componentsHook,
	softwareHook,
	devicesHook,
}

// Diff runs the field pass and then every hook in Chain.
func Diff(before, after *Snapshot) Result {
	var res Result
	for _, f := range fields {
		if !before.Touched[f.Key] {
			continue
		}
		oldV, newV := before.Fields[f.Key], after.Fields[f.Key]
		if oldV == newV {
			continue
		}
		res.Fields = append(res.Fields, FieldChange{Key: f.Key, Old: oldV, New: newV})
		res.Lines = append(res.Lines, fmt.Sprintf("<strong>%s</strong>: %s → <strong>%s</strong>",
			f.Label, esc(oldV), esc(newV)))
	}
	for _, h := range Chain {
		res.Lines = append(res.Lines, h(before, after)...)
	}
	return res
}

func esc(s string) string { return html.EscapeString(s) }

func names(items []Item) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, esc(it.Name))
	}
	return strings.Join(out, ", ")
}

// added returns items of after whose id is not in before, and removed the
// opposite, both in snapshot order.
func added(before, after []Item) []Item {
	old := index(before)
	var out []Item
	for _, it := range after {
		if _, ok := old[it.ID]; !ok {
			out = append(out, it)
		}
	}
	return out
}

func closingHook(before, after *Snapshot) []string {
	switch {
	case before.CloseDate == nil && after.CloseDate != nil:
		return []string{fmt.Sprintf("State changed to '%s' and closed on %s.",
			esc(after.StateName), after.CloseDate.Format(CloseDateLayout))}
	case before.CloseDate != nil && after.CloseDate == nil:
		return []string{"State reopened. Close date removed."}
	}
	return nil
}

func totalHook(before, after *Snapshot) []string {
	if before.ExpectedTotal.Equal(after.ExpectedTotal) {
		return nil
	}
	diff := after.ExpectedTotal.Sub(before.ExpectedTotal)
	sign := ""
	if !diff.IsNegative() {
		sign = "+ "
	}
	return []string{fmt.Sprintf("<strong>Total changed €:</strong> %s%s", sign, diff.StringFixed(2))}
}

func accessoriesHook(before, after *Snapshot) []string {
	if !before.Touched[KeyAccessories] {
		return nil
	}
	var lines []string
	if a := added(before.Accessories, after.Accessories); len(a) > 0 {
		lines = append(lines, "Accessories added: <strong>"+names(a)+"</strong>")
	}
	if r := added(after.Accessories, before.Accessories); len(r) > 0 {
		lines = append(lines, "Accessories removed: <strong>"+names(r)+"</strong>")
	}
	now := index(after.Accessories)
	for _, it := range before.Accessories {
		if n, ok := now[it.ID]; ok && n != it.Name {
			lines = append(lines, fmt.Sprintf("Accessory changed: <strong>%s → %s</strong>", esc(it.Name), esc(n)))
		}
	}
	return lines
}

func loanerHook(before, after *Snapshot) []string {
	if !before.Touched[KeyLoaner] || before.Loaner.ID == after.Loaner.ID {
		return nil
	}
	var lines []string
	if after.Loaner.ID != "" {
		lines = append(lines, "Loaner assigned: <strong>"+esc(after.Loaner.Name)+"</strong>")
	}
	if before.Loaner.ID != "" {
		lines = append(lines, "Loaner released: <strong>"+esc(before.Loaner.Name)+"</strong>")
	}
	return lines
}

func credentialsHook(before, after *Snapshot) []string {
	if !before.Touched[KeyCredentials] {
		return nil
	}
	old := make(map[string]*entity.Credential, len(before.Credentials))
	for i := range before.Credentials {
		old[before.Credentials[i].ID] = &before.Credentials[i]
	}
	now := make(map[string]bool, len(after.Credentials))

	var lines []string
	for i := range after.Credentials {
		c := &after.Credentials[i]
		now[c.ID] = true
		prev, ok := old[c.ID]
		if !ok {
			lines = append(lines, fmt.Sprintf("Credential added: <strong>%s / %s</strong> for <strong>%s</strong>",
				esc(c.Username), esc(c.Password), esc(c.ServiceLabel())))
			continue
		}
		if prev.Username != c.Username {
			lines = append(lines, fmt.Sprintf("Username changed: <strong>%s → %s</strong>", esc(prev.Username), esc(c.Username)))
		}
		if prev.Password != c.Password {
			lines = append(lines, "Password changed for "+esc(c.Username))
		}
		if prev.ServiceType != c.ServiceType {
			lines = append(lines, fmt.Sprintf("Service changed: <strong>%s → %s</strong>",
				esc(entity.CredentialServices.Label(prev.ServiceType)), esc(entity.CredentialServices.Label(c.ServiceType))))
		}
		if prev.ServiceOther != c.ServiceOther && c.ServiceType == entity.ServiceOther {
			lines = append(lines, fmt.Sprintf("Other service changed: <strong>%s → %s</strong>", esc(prev.ServiceOther), esc(c.ServiceOther)))
		}
	}
	for i := range before.Credentials {
		c := &before.Credentials[i]
		if !now[c.ID] {
			lines = append(lines, fmt.Sprintf("Credential removed: <strong>%s</strong> for <strong>%s</strong>",
				esc(c.Username), esc(c.ServiceLabel())))
		}
	}
	return lines
}

func componentsHook(before, after *Snapshot) []string {
	if !before.Touched[KeyComponents] {
		return nil
	}
	var lines []string
	if a := added(before.Components, after.Components); len(a) > 0 {
		lines = append(lines, "Components added: <strong>"+names(a)+"</strong>")
	}
	if r := added(after.Components, before.Components); len(r) > 0 {
		lines = append(lines, "Components removed: <strong>"+names(r)+"</strong>")
	}
	return lines
}

func softwareHook(before, after *Snapshot) []string {
	if !before.Touched[KeySoftware] {
		return nil
	}
	old := make(map[string]SoftwareItem, len(before.Software))
	for _, s := range before.Software {
		old[s.ID] = s
	}
	now := make(map[string]bool, len(after.Software))

	var addedNames, removedNames, lines []string
	var flagLines []string
	for _, s := range after.Software {
		now[s.ID] = true
		prev, ok := old[s.ID]
		if !ok {
			addedNames = append(addedNames, esc(s.Name))
			continue
		}
		if prev.AddToTotal != s.AddToTotal {
			if s.AddToTotal {
				flagLines = append(flagLines, "Software <strong>"+esc(s.Name)+"</strong> added to total")
			} else {
				flagLines = append(flagLines, "Software <strong>"+esc(s.Name)+"</strong> removed from total")
			}
		}
	}
	for _, s := range before.Software {
		if !now[s.ID] {
			removedNames = append(removedNames, esc(s.Name))
		}
	}
	if len(addedNames) > 0 {
		lines = append(lines, "Software added: <strong>"+strings.Join(addedNames, ", ")+"</strong>")
	}
	if len(removedNames) > 0 {
		lines = append(lines, "Software removed: <strong>"+strings.Join(removedNames, ", ")+"</strong>")
	}
	return append(lines, flagLines...)
}

func devicesHook(before, after *Snapshot) []string {
	if !before.Touched[KeyDevices] {
		return nil
	}
	var lines []string
	if a := added(before.Devices, after.Devices); len(a) > 0 {
		lines = append(lines, "Devices added: <strong>"+names(a)+"</strong>")
	}
	if r := added(after.Devices, before.Devices); len(r) > 0 {
		lines = append(lines, "Devices removed: <strong>"+names(r)+"</strong>")
	}
	return lines
}
