package model

import (
	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/model/encoder"
	"github.com/turtacn/MolForge-Engine/internal/model/heads"
)

// FromAppConfig maps the application configuration onto the assembled model
// configuration. The element vocabulary size comes from the dataset section
// so the encoder, species head, and position head always agree on it.
func FromAppConfig(cfg *config.Config) Config {
	numElements := len(cfg.Dataset.Elements)
	return Config{
		Encoder: encoder.Config{
			Variant:     cfg.Model.EncoderVariant,
			NumElements: numElements,
			Channels:    cfg.Model.Channels,
			LMax:        cfg.Model.LMax,
			Rounds:      cfg.Model.Rounds,
			Cutoff:      cfg.Model.Cutoff,
			NumRBF:      cfg.Model.NumRBF,
			HiddenDim:   cfg.Model.HiddenDim,
		},
		Position: heads.PositionConfig{
			Variant:     cfg.Position.Variant,
			Channels:    cfg.Model.Channels,
			PosChannels: cfg.Position.PosChannels,
			LMax:        cfg.Model.LMax,
			NumRadii:    cfg.Position.NumRadii,
			MinRadius:   cfg.Position.MinRadius,
			MaxRadius:   cfg.Position.MaxRadius,
			Hidden:      cfg.Model.HeadHidden,
			NumElements: numElements,
		},
		HeadHidden:        cfg.Model.HeadHidden,
		ResBeta:           cfg.Position.ResBeta,
		ResAlpha:          cfg.Position.ResAlpha,
		RadiusRBFVariance: cfg.Position.RadiusRBFVariance,
	}
}
