package web

type PackOption struct {
	ID    string
	Name  string
	Black int
	White int
}
