package v1alpha1

import "github.com/thoas/go-funk"

// GroundTruthRow is one normalized line of the Ground Truth status
// report. Every field is filled, missing values fall back to the
// placeholders the report prints.
type GroundTruthRow struct {
	DataId                string   `json:"data_id"`
	MaterializationStatus string   `json:"materialization_status"`
	GroundTruthProfileId  string   `json:"ground_truth_profile_id"`
	GTContractCount       int      `json:"gt_contract_count"`
	GTContractIds         []string `json:"gt_contract_ids"`
	ProcessingStatus      string   `json:"processing_status"`
	UpdatedAt             string   `json:"updated_at"`
}

// ExtractProfileID pulls the Ground Truth profile id out of a
// materialization result. Lookup order: profile.id, then the flat
// ground_truth_profile_id, then binding.binding_meta.ground_truth_profile_id.
// Returns "" when none is present.
func ExtractProfileID(result map[string]any) string {
	if profile, ok := result["profile"].(map[string]any); ok {
		if id := stringField(profile, "id"); id != "" {
			return id
		}
	}
	if id := stringField(result, "ground_truth_profile_id"); id != "" {
		return id
	}
	if binding, ok := result["binding"].(map[string]any); ok {
		if meta, ok := binding["binding_meta"].(map[string]any); ok {
			if id := stringField(meta, "ground_truth_profile_id"); id != "" {
				return id
			}
		}
	}
	return ""
}

// ExtractContractIDs collects Ground Truth contract ids from a
// materialization result. Entries of gt_contracts may be plain strings or
// objects carrying id or contract_id, gt_contract_ids entries are merged
// in afterwards. Duplicates are removed, first occurrence wins.
func ExtractContractIDs(result map[string]any) []string {
	ids := []string{}
	if contracts, ok := result["gt_contracts"].([]any); ok {
		for _, contract := range contracts {
			switch c := contract.(type) {
			case string:
				if c != "" {
					ids = append(ids, c)
				}
			case map[string]any:
				id := stringField(c, "id")
				if id == "" {
					id = stringField(c, "contract_id")
				}
				if id != "" {
					ids = append(ids, id)
				}
			}
		}
	}
	if rawIds, ok := result["gt_contract_ids"].([]any); ok {
		for _, rawId := range rawIds {
			if id, ok := rawId.(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return funk.UniqString(ids)
}

// BuildGroundTruthRows normalizes the Ground Truth status payload into a
// flat row list. The endpoint historically answered with a bare list, an
// items or statuses envelope, or a single object, all shapes are
// accepted. Anything unrecognizable yields an empty list, never an
// error.
func BuildGroundTruthRows(payload any, fallbackDataId string) []GroundTruthRow {
	var items []any
	switch p := payload.(type) {
	case []any:
		items = p
	case map[string]any:
		if list, ok := p["items"].([]any); ok {
			items = list
		} else if list, ok := p["statuses"].([]any); ok {
			items = list
		} else {
			items = []any{p}
		}
	default:
		return []GroundTruthRow{}
	}

	rows := []GroundTruthRow{}
	for _, entry := range items {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		dataId := stringField(item, "data_id")
		if dataId == "" {
			dataId = fallbackDataId
		}
		if dataId == "" {
			dataId = "N/A"
		}

		profileId := stringField(item, "ground_truth_profile_id")
		if profileId == "" {
			if profile, ok := item["profile"].(map[string]any); ok {
				profileId = stringField(profile, "id")
			}
		}
		if profileId == "" {
			profileId = "-"
		}

		contractIds := []string{}
		if rawIds, ok := item["gt_contract_ids"].([]any); ok {
			for _, rawId := range rawIds {
				if id, ok := rawId.(string); ok && id != "" {
					contractIds = append(contractIds, id)
				}
			}
		} else if contracts, ok := item["gt_contracts"].([]any); ok {
			for _, contract := range contracts {
				switch c := contract.(type) {
				case string:
					if c != "" {
						contractIds = append(contractIds, c)
					}
				case map[string]any:
					if id := stringField(c, "id"); id != "" {
						contractIds = append(contractIds, id)
					}
				}
			}
		}

		rows = append(rows, GroundTruthRow{
			DataId:                dataId,
			MaterializationStatus: stringFieldOr(item, "materialization_status", "unknown"),
			GroundTruthProfileId:  profileId,
			GTContractCount:       len(contractIds),
			GTContractIds:         contractIds,
			ProcessingStatus:      stringFieldOr(item, "processing_status", "unknown"),
			UpdatedAt:             stringFieldOr(item, "updated_at", "-"),
		})
	}
	return rows
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringFieldOr(m map[string]any, key, fallback string) string {
	if v := stringField(m, key); v != "" {
		return v
	}
	return fallback
}
