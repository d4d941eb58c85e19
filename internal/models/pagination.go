package models

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

type PaginationQuery struct {
	Skip  int `form:"skip" binding:"omitempty,min=0"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (p PaginationQuery) Normalize() PaginationQuery {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 || p.Limit > MaxPageLimit {
		p.Limit = DefaultPageLimit
	}
	return p
}
