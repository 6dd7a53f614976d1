package repository

// Page bounds a listing query; a zero Limit means no limit
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
