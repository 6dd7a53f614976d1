package service

import "context"

// UnknownTotal marks a PageState whose record count the platform did not report
const UnknownTotal = -1

// PageState is the cursor state of a since_id paginated listing
type PageState struct {
	HasMore bool
	Cursor  int64 // last external id seen; 0 before the first page
	Fetched int
	Pages   int
	Total   int // UnknownTotal when the count request failed
}

// NewPageState starts a listing. A reported total of zero needs no requests.
func NewPageState(total int) PageState {
	return PageState{HasMore: total != 0, Total: total}
}

// Advance returns the state after receiving a page of pageLen records whose
// last id is lastID. The listing ends on a short page, once the reported
// total is reached, or when the cursor stops moving forward.
func Advance(s PageState, pageLen, pageSize int, lastID int64) PageState {
	prev := s.Cursor
	s.Pages++
	s.Fetched += pageLen
	if pageLen > 0 {
		s.Cursor = lastID
	}

	switch {
	case pageLen < pageSize:
		s.HasMore = false
	case s.Total != UnknownTotal && s.Fetched >= s.Total:
		s.HasMore = false
	case s.Cursor <= prev:
		s.HasMore = false
	}
	return s
}

// Pager drives sequential page fetches until the listing is exhausted
type Pager[T any] struct {
	PageSize int
	Fetch    func(ctx context.Context, cursor int64) ([]T, error)
	ID       func(T) int64
}

// All fetches every page. On error it returns the records gathered so far
// and the state before the failing request; callers discard both.
func (p Pager[T]) All(ctx context.Context, start PageState) ([]T, PageState, error) {
	var out []T
	state := start
	for state.HasMore {
		if err := ctx.Err(); err != nil {
			return out, state, err
		}
		page, err := p.Fetch(ctx, state.Cursor)
		if err != nil {
			return out, state, err
		}
		// ids ascend under since_id; max tolerates a trailing record whose id failed to decode
		var lastID int64
		for _, rec := range page {
			lastID = max(lastID, p.ID(rec))
		}
		out = append(out, page...)
		state = Advance(state, len(page), p.PageSize, lastID)
	}
	return out, state, nil
}
