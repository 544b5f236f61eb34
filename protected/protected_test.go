/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package protected

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAllDateEmailStatus(t *testing.T) {
	text := "Jan 2019 - Present, reach me at jane.doe@example.com from Austin, TX"
	matches := FindAll(text)
	require.NotEmpty(t, matches, "expected at least one protected match")

	var sawDate, sawStatus, sawEmail, sawLoc bool
	for _, m := range matches {
		switch m.Kind {
		case KindDate:
			sawDate = true
		case KindStatus:
			sawStatus = true
		case KindEmail:
			sawEmail = true
		case KindLocation:
			sawLoc = true
		}
	}
	assert.True(t, sawDate, "date")
	assert.True(t, sawStatus, "status")
	assert.True(t, sawEmail, "email")
	assert.True(t, sawLoc, "location")
}

func TestBareYearNotPartOfLongerDigitRun(t *testing.T) {
	assert.True(t, ContainsAny("Graduated 2020"), "bare year should be protected")
	assert.False(t, ContainsAny("Order #120205551"), "a year-like substring inside a longer digit run must not match")
}

func TestSetsGroupsByKind(t *testing.T) {
	sets := Sets("Worked there from 2019 to Present")
	assert.True(t, sets[KindYear]["2019"])
	assert.True(t, sets[KindStatus]["Present"])
}
