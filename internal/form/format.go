package form

import (
	"math"
	"strconv"

	"idmltranslator/internal/models"
	"idmltranslator/internal/translator"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes with 1024-based units, rounded to two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	unit := 0
	for n := bytes; n >= 1024 && unit < len(sizeUnits)-1; n /= 1024 {
		unit++
	}

	value := float64(bytes) / math.Pow(1024, float64(unit))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[unit]
}

// DownloadLinks builds the two artifact links for a successful translation.
func DownloadLinks(idmlFile, wordFile string) []models.DownloadLink {
	return []models.DownloadLink{
		{
			Kind:  models.ArtifactIDML,
			Label: "Download IDML File",
			Href:  translator.DownloadPath(models.ArtifactIDML, idmlFile),
		},
		{
			Kind:  models.ArtifactWord,
			Label: "Download Word Document",
			Href:  translator.DownloadPath(models.ArtifactWord, wordFile),
		},
	}
}
