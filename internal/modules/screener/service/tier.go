package service

import (
	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
)

// ClassifyTier — грубая классификация по суточному объёму (quote).
// Используется для фильтров и отображения, на переходы не влияет.
func ClassifyTier(volume24h float64, tiers config.VolumeTiers) models.QualityTier {
	switch {
	case volume24h >= tiers.Bluechip:
		return models.TierBluechip
	case volume24h >= tiers.Midcap:
		return models.TierMidcap
	default:
		return models.TierShitcoin
	}
}
