package testutil

import "github.com/Veraticus/tariff/internal/model"

// SampleCodes returns a small registry: two tariff lines under 8471.30 and
// one under 7323.93.
func SampleCodes() []model.CommodityCode {
	return []model.CommodityCode{
		{HSCode: "847130", Code: "8471300000", Description: "Portable automatic data processing machines"},
		{HSCode: "847130", Code: "8471300090", Description: "Other portable machines"},
		{HSCode: "732393", Code: "7323930010", Description: "Stainless steel household articles"},
	}
}

// SampleRegistryCSV is SampleCodes in the registry import format.
const SampleRegistryCSV = `hs_code,description,code
847130,Portable automatic data processing machines,8471300000
847130,Other portable machines,8471300090
732393,Stainless steel household articles,7323930010
`
