package storage

import (
	"encoding/json"
	"errors"

	"pacbench/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRunConfig(c model.RunConfig) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeRunConfig(data []byte) (model.RunConfig, error) {
	var config model.RunConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return model.RunConfig{}, err
	}
	if err := checkVersion(config.VersionedRecord); err != nil {
		return model.RunConfig{}, err
	}
	return config, nil
}

func EncodeEpisode(r model.EpisodeResult) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeEpisode(data []byte) (model.EpisodeResult, error) {
	var result model.EpisodeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.EpisodeResult{}, err
	}
	if err := checkVersion(result.VersionedRecord); err != nil {
		return model.EpisodeResult{}, err
	}
	return result, nil
}

func EncodeRunReport(r model.RunReport) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRunReport(data []byte) (model.RunReport, error) {
	var report model.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return model.RunReport{}, err
	}
	if err := checkVersion(report.VersionedRecord); err != nil {
		return model.RunReport{}, err
	}
	return report, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
