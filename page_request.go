package lazypager

import (
	"fmt"

	"gorm.io/gorm"
)

// PageRequest describes one LIMIT/OFFSET window of an ordered query.
type PageRequest struct {
	offset int
	limit  int
	sort   Orderings
}

// NewPageRequest returns an unlimited request starting at offset 0.
func NewPageRequest() *PageRequest {
	return &PageRequest{limit: NoLimit}
}

// WithOffset sets the absolute offset of the first row.
func (p *PageRequest) WithOffset(offset int) *PageRequest {
	if p == nil {
		p = NewPageRequest()
	}

	p.offset = offset

	return p
}

// WithLimit sets the maximum number of returned rows. NoLimit removes the
// limit.
func (p *PageRequest) WithLimit(limit int) *PageRequest {
	if p == nil {
		p = NewPageRequest()
	}

	p.limit = limit

	return p
}

// WithUnlimited allows returning all rows past the offset.
func (p *PageRequest) WithUnlimited() *PageRequest {
	return p.WithLimit(NoLimit)
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (p *PageRequest) WithSubstitutedSort(orderBy ...OrderBy) *PageRequest {
	if p == nil {
		p = NewPageRequest()
	}

	p.sort = nil

	return p.WithSort(orderBy...)
}

// WithSort appends sort orderings without overwriting existing ones. A column
// met again moves to its new position, as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
func (p *PageRequest) WithSort(orderBy ...OrderBy) *PageRequest {
	if p == nil {
		p = NewPageRequest()
	}

	p.sort = append(p.sort, orderBy...).Deduplicated()

	return p
}

// Paginate applies ordering, offset and limit to the query. Returns an error
// if the request is invalid.
func (p *PageRequest) Paginate(db *gorm.DB) (*gorm.DB, error) {
	err := p.validate()
	if err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	db = p.sort.Apply(db)
	if p.offset > 0 {
		db = db.Offset(p.offset)
	}

	if p.limit != NoLimit {
		db = db.Limit(p.limit)
	}

	return db, nil
}

// GetSort returns orderings that will be applied to the dataset.
func (p *PageRequest) GetSort() Orderings {
	if p == nil {
		return nil
	}

	return p.sort
}

// GetOffset returns the absolute offset of the first row.
func (p *PageRequest) GetOffset() int {
	if p == nil {
		return 0
	}

	return p.offset
}

// GetLimit returns the limit as stored. NoLimit means no limit.
func (p *PageRequest) GetLimit() int {
	if p == nil {
		return NoLimit
	}

	return p.limit
}

// IsUnlimited returns true if the limit equals NoLimit.
func (p *PageRequest) IsUnlimited() bool {
	return p.GetLimit() == NoLimit
}

func (p *PageRequest) validate() error {
	if p == nil {
		return fmt.Errorf("page request is nil")
	}

	if p.offset < 0 {
		return fmt.Errorf("negative offset %d", p.offset)
	}

	if p.limit < 0 && p.limit != NoLimit {
		return fmt.Errorf("negative limit %d", p.limit)
	}

	return p.sort.validate()
}
