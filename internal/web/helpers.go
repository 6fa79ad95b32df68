package web

import (
	"strconv"

	"github.com/a-h/templ"
)

func itoa(value int) string {
	return strconv.Itoa(value)
}

func packLabel(pack PackOption) string {
	return templ.EscapeString(pack.Name) + " (" + itoa(pack.Black) + " black / " + itoa(pack.White) + " white)"
}
