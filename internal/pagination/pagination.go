// Package pagination implements the deterministic page arithmetic for
// append-only, height-indexed lists (spec.md §4.5). Reverse pagination lets
// callers page backwards from the newest item without materialising a
// reversed copy of the list; direct pagination is the trivial forward
// mapping used for domains/accounts/asset-definitions/assets/NFTs.
//
// This is pure integer arithmetic: no third-party library in the example
// pack specializes ceiling-division-and-range-clamp, and reaching for one
// here would not simplify anything the standard library doesn't already
// express directly.
package pagination

import "fmt"

// PageOutOfBoundsError is returned when a requested page exceeds the total
// number of available pages.
type PageOutOfBoundsError struct {
	Page uint64
	Max  uint64
}

func (e *PageOutOfBoundsError) Error() string {
	return fmt.Sprintf("page %d is out of bounds: maximum allowed is %d", e.Page, e.Max)
}

// Range is a half-open index range [Lo, Hi) on a forward list.
type Range struct {
	Lo, Hi uint64
}

// Len reports the number of items the range covers.
func (r Range) Len() uint64 { return r.Hi - r.Lo }

// Page describes a resolved page of a list of TotalItems items.
type Page struct {
	TotalItems uint64
	PerPage    uint64
	PageNum    uint64
	TotalPages uint64
}

func totalPages(totalItems, perPage uint64) uint64 {
	if perPage == 0 {
		return 0
	}
	n := totalItems / perPage
	if totalItems%perPage != 0 {
		n++
	}
	return n
}

// Reverse computes the page, the forward-list range it covers, and the
// offset/limit to apply to a reversed iterator (spec.md §4.5). page is nil
// for "use the default page", which is the last page (most recent items).
//
// An empty list (totalItems == 0) yields the distinguished empty page:
// {TotalItems: 0, PerPage: perPage, PageNum: 1, TotalPages: 0} and a
// zero-length range.
func Reverse(totalItems, perPage uint64, page *uint64) (Page, Range, error) {
	if totalItems == 0 {
		return Page{TotalItems: 0, PerPage: perPage, PageNum: 1, TotalPages: 0}, Range{}, nil
	}

	tp := totalPages(totalItems, perPage)

	effective := tp
	if page != nil {
		effective = *page
		if effective > tp {
			return Page{}, Range{}, &PageOutOfBoundsError{Page: effective, Max: tp}
		}
	}

	startFromEnd := perPage * (effective - 1)
	endFromEnd := startFromEnd + perPage
	if endFromEnd > totalItems {
		endFromEnd = totalItems
	}

	rng := Range{Lo: totalItems - endFromEnd, Hi: totalItems - startFromEnd}
	return Page{TotalItems: totalItems, PerPage: perPage, PageNum: effective, TotalPages: tp}, rng, nil
}

// OffsetLimit is the {offset, limit} pair to apply to a reversed iterator,
// per ReversePagination::to_offset_limit_for_rev_iter in the source design.
type OffsetLimit struct {
	Offset uint64
	Limit  uint64
}

// ToOffsetLimitForRevIter translates a reverse-pagination range into an
// offset/limit pair meant to be applied to a list iterated newest-first.
func (r Range) ToOffsetLimitForRevIter() OffsetLimit {
	return OffsetLimit{Offset: r.Lo, Limit: r.Len()}
}

// Direct computes the page and forward-list range for simple top-down
// pagination (domains, accounts, asset definitions, assets, NFTs).
func Direct(totalItems, perPage uint64, page uint64) (Page, Range, error) {
	if totalItems == 0 {
		return Page{TotalItems: 0, PerPage: perPage, PageNum: 1, TotalPages: 0}, Range{}, nil
	}
	if page == 0 {
		page = 1
	}
	tp := totalPages(totalItems, perPage)
	if page > tp {
		return Page{}, Range{}, &PageOutOfBoundsError{Page: page, Max: tp}
	}
	lo := (page - 1) * perPage
	hi := lo + perPage
	if hi > totalItems {
		hi = totalItems
	}
	return Page{TotalItems: totalItems, PerPage: perPage, PageNum: page, TotalPages: tp}, Range{Lo: lo, Hi: hi}, nil
}
