package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanNames(t *testing.T) {
	assert.Equal(t, []string{"go", "rss"}, cleanNames([]string{" go ", "rss", "GO"}))
	assert.Equal(t, []string{"one"}, cleanNames([]string{"", "  ", "one"}))
	assert.Empty(t, cleanNames(nil))
}
