package auth

import (
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"
)

// Employee is a store employee allowed to confirm purchases.
type Employee struct {
	ID       string
	Password string
	Name     string
}

// Directory holds the static employee credentials.
type Directory struct {
	byID map[string]Employee
}

// ParseEmployees reads "id:password:Display Name" entries separated by commas.
// The display name is optional and defaults to the id.
func ParseEmployees(raw string) (*Directory, error) {
	d := &Directory{byID: make(map[string]Employee)}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("invalid employee entry %q: expected id:password[:name]", part)
		}
		emp := Employee{ID: strings.TrimSpace(fields[0]), Password: fields[1], Name: fields[0]}
		if len(fields) == 3 && strings.TrimSpace(fields[2]) != "" {
			emp.Name = strings.TrimSpace(fields[2])
		}
		if _, dup := d.byID[emp.ID]; dup {
			return nil, fmt.Errorf("duplicate employee id %q", emp.ID)
		}
		d.byID[emp.ID] = emp
	}
	return d, nil
}

// Authenticate checks an employee's password in constant time.
func (d *Directory) Authenticate(id, password string) (Employee, bool) {
	emp, ok := d.byID[id]
	if !ok {
		// Burn a comparison so unknown ids take as long as known ones.
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return Employee{}, false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(emp.Password)) != 1 {
		return Employee{}, false
	}
	return emp, true
}

// IDs returns the configured employee ids, sorted.
func (d *Directory) IDs() []string {
	ids := make([]string, 0, len(d.byID))
	for id := range d.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Directory) Len() int { return len(d.byID) }
