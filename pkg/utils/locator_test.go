package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/narekokr/text-guided-audio-split/pkg/utils"
)

func TestResolveLocator(t *testing.T) {
	assert.Equal(t, "http://api.test/downloads/v.wav",
		utils.ResolveLocator("http://api.test", "/downloads/v.wav"))
	assert.Equal(t, "http://api.test/downloads/v.wav",
		utils.ResolveLocator("http://api.test/", "downloads/v.wav"))
	assert.Equal(t, "https://cdn.test/v.wav",
		utils.ResolveLocator("http://api.test", "https://cdn.test/v.wav"))
	assert.Empty(t, utils.ResolveLocator("http://api.test", ""))
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "vocals.wav", utils.DownloadName("vocals"))
	assert.Equal(t, "remix.wav", utils.DownloadName(""))
}
