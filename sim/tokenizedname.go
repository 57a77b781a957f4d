package sim

import (
	"strconv"
	"strings"
)

// NameMustBeValid panics if the name does not follow the naming convention.
// A name is a dot-separated hierarchy of CamelCase elements, where an element
// of a series carries its index in square brackets, such as "Bridge.Port[2]".
func NameMustBeValid(name string) {
	for _, token := range strings.Split(name, ".") {
		if err := tokenError(token); err != "" {
			panic("Name " + name + " is not valid: " + err)
		}
	}
}

func tokenError(token string) string {
	elemName, indexPart, _ := strings.Cut(token, "[")

	if elemName == "" {
		return "element must not be empty"
	}

	if strings.ContainsAny(elemName, "_\"'- ]") {
		return "element must not contain special characters"
	}

	if elemName[0] < 'A' || elemName[0] > 'Z' {
		return "element must start with a capital letter"
	}

	if indexPart == "" {
		return ""
	}

	for _, idx := range strings.Split("["+indexPart, "[")[1:] {
		if !strings.HasSuffix(idx, "]") {
			return "bracket must match"
		}

		if _, err := strconv.Atoi(strings.TrimSuffix(idx, "]")); err != nil {
			return "index must be an integer"
		}
	}

	return ""
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds the name of the index-th element of a series.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
