package http

import (
	"kharcha/internal/core"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

type budgetDTO struct {
	ID     int64      `json:"id"`
	Month  int        `json:"month"`
	Year   int        `json:"year"`
	Amount core.Money `json:"amount"`
}

type expenseDTO struct {
	ID          int64      `json:"id"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Amount      core.Money `json:"amount"`
	CategoryID  int64      `json:"categoryId"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
}

type categoryDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type categoryTotalDTO struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
	Total core.Money `json:"total"`
}

type weekdayTotalDTO struct {
	Day   string     `json:"day"`
	Total core.Money `json:"total"`
}

type dashboardDTO struct {
	Budget     core.Money         `json:"budget"`
	MonthTotal core.Money         `json:"monthTotal"`
	Remaining  core.Money         `json:"remaining"`
	Recent     []expenseDTO       `json:"recent"`
	Categories []categoryTotalDTO `json:"categories"`
	Week       []weekdayTotalDTO  `json:"week"`
}

func (s *Server) budgetDTO(b core.Budget) budgetDTO {
	return budgetDTO{ID: b.ID, Month: b.Month, Year: b.Year, Amount: b.Amount}
}

func (s *Server) expenseDTO(e core.Expense, category string) expenseDTO {
	date, clock := s.resolver.Civil(e.DateTime)
	return expenseDTO{
		ID:          e.ID,
		Date:        date,
		Time:        clock,
		Amount:      e.Amount,
		CategoryID:  e.CategoryID,
		Category:    category,
		Description: e.Description,
	}
}

func (s *Server) expenseListDTO(rows []storage.ExpenseWithCategory) []expenseDTO {
	out := make([]expenseDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.expenseDTO(row.Expense, row.CategoryName))
	}
	return out
}

func (s *Server) dashboardDTO(d services.Dashboard) dashboardDTO {
	categories := make([]categoryTotalDTO, 0, len(d.Categories))
	for _, ct := range d.Categories {
		categories = append(categories, categoryTotalDTO{
			ID:    ct.Category.ID,
			Name:  ct.Category.Name,
			Color: ct.Category.Color,
			Total: ct.Total,
		})
	}

	week := make([]weekdayTotalDTO, 0, len(d.Week))
	for _, wt := range d.Week {
		week = append(week, weekdayTotalDTO{Day: wt.Weekday.String(), Total: wt.Total})
	}

	return dashboardDTO{
		Budget:     d.Budget,
		MonthTotal: d.MonthTotal,
		Remaining:  d.Remaining,
		Recent:     s.expenseListDTO(d.Recent),
		Categories: categories,
		Week:       week,
	}
}
