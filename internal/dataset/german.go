package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TargetColumn is the outcome column of the German credit data.
const TargetColumn = "CreditRisk"

// GermanCreditColumns is the column order of the raw german.data file.
var GermanCreditColumns = []string{
	"CheckingAccount", "Duration", "CreditHistory", "Purpose", "CreditAmount",
	"SavingsAccount", "EmploymentSince", "InstallmentRate", "PersonalStatusSex", "OtherDebtors",
	"ResidenceSince", "Property", "Age", "OtherInstallmentPlans", "Housing",
	"ExistingCredits", "Job", "LiablePeople", "Telephone", "ForeignWorker",
	TargetColumn,
}

// binnedColumns are cut into three equal-width intervals.
var binnedColumns = map[string][]string{
	"Age":          {"Young", "Middle", "Old"},
	"CreditAmount": {"Low", "Medium", "High"},
	"Duration":     {"Short", "Medium", "Long"},
}

// codeLabels translates the attribute codes of the raw file. Codes missing
// from a map are kept as-is.
var codeLabels = map[string]map[string]string{
	"CheckingAccount": {
		"A11": "lt0", "A12": "0to200", "A13": "ge200", "A14": "No Checking",
	},
	"CreditHistory": {
		"A30": "No credits taken / all paid duly",
		"A31": "All credits at this bank paid duly",
		"A32": "Existing credits paid duly till now",
		"A33": "Delay in paying off in the past",
		"A34": "Critical account / other credits elsewhere",
	},
	"Purpose": {
		"A40": "car (new)", "A41": "car (used)", "A42": "furniture/equipment",
		"A43": "radio/television", "A44": "domestic appliances", "A45": "repairs",
		"A46": "education", "A47": "vacation", "A48": "retraining",
		"A49": "business", "A410": "others",
	},
	"SavingsAccount": {
		"A61": "lt100 DM", "A62": "100to500 DM", "A63": "500to1000 DM",
		"A64": "ge1000 DM", "A65": "unknown / no savings",
	},
	"EmploymentSince": {
		"A71": "unemployed", "A72": "lt1 year", "A73": "1to4 years",
		"A74": "4to7 years", "A75": "ge7 years",
	},
	"PersonalStatusSex": {
		"A91": "male: divorced/separated",
		"A92": "female: divorced/separated/married",
		"A93": "male: single",
		"A94": "male: married/widowed",
		"A95": "female: single",
	},
	"OtherDebtors": {
		"A101": "none", "A102": "co-applicant", "A103": "guarantor",
	},
	"Property": {
		"A121": "real estate",
		"A122": "building society savings / life insurance",
		"A123": "car or other",
		"A124": "unknown / no property",
	},
	"OtherInstallmentPlans": {
		"A141": "bank", "A142": "stores", "A143": "none",
	},
	"Housing": {
		"A151": "rent", "A152": "own", "A153": "for free",
	},
	"Job": {
		"A171": "unemployed/unskilled - non-resident",
		"A172": "unskilled - resident",
		"A173": "skilled employee/official",
		"A174": "management/self-employed/highly qualified/officer",
	},
	"Telephone": {
		"A191": "none", "A192": "yes (registered)",
	},
	"ForeignWorker": {
		"A201": "yes", "A202": "no",
	},
	TargetColumn: {
		"1": "Good", "2": "Bad",
	},
}

// LoadGermanCreditFile reads and preprocesses a raw german.data file.
func LoadGermanCreditFile(path string) (*Dataset, error) {
	// #nosec G304 -- the input path is user-provided by design
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	d, err := LoadGermanCredit(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return d, nil
}

// LoadGermanCredit parses the space-separated raw format, bins the numeric
// columns and translates attribute codes into readable labels.
func LoadGermanCredit(r io.Reader) (*Dataset, error) {
	var raw [][]string
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(GermanCreditColumns) {
			return nil, fmt.Errorf("line %d: %w: got %d fields, want %d",
				line, ErrRowWidth, len(fields), len(GermanCreditColumns))
		}
		raw = append(raw, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	for col, labels := range binnedColumns {
		c := columnPosition(col)
		values := make([]float64, len(raw))
		for i, row := range raw {
			v, err := strconv.ParseFloat(row[c], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col, err)
			}
			values[i] = v
		}
		binned := Cut(values, labels)
		for i := range raw {
			raw[i][c] = binned[i]
		}
	}

	for col, mapping := range codeLabels {
		c := columnPosition(col)
		for i := range raw {
			if label, ok := mapping[raw[i][c]]; ok {
				raw[i][c] = label
			}
		}
	}

	d, err := New(GermanCreditColumns...)
	if err != nil {
		return nil, err
	}
	for _, row := range raw {
		if err := d.Append(row...); err != nil {
			return nil, err
		}
	}
	for col, labels := range binnedColumns {
		if err := d.SetLevels(col, labels); err != nil {
			return nil, err
		}
	}
	if err := d.SetLevels(TargetColumn, []string{"Good", "Bad"}); err != nil {
		return nil, err
	}
	return d, nil
}

func columnPosition(name string) int {
	for i, c := range GermanCreditColumns {
		if c == name {
			return i
		}
	}
	panic("dataset: unknown German credit column " + name)
}

// Cut assigns each value to one of len(labels) equal-width intervals over the
// value range. Intervals are closed on the right; the lowest edge is pushed
// down by 0.1% of the range so the minimum falls in the first bin.
func Cut(values []float64, labels []string) []string {
	out := make([]string, len(values))
	if len(values) == 0 || len(labels) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	n := len(labels)
	edges := make([]float64, n+1)
	if lo == hi {
		adj := 0.001
		if lo != 0 {
			adj = 0.001 * abs(lo)
		}
		lo, hi = lo-adj, hi+adj
		for i := range edges {
			edges[i] = lo + (hi-lo)*float64(i)/float64(n)
		}
	} else {
		for i := range edges {
			edges[i] = lo + (hi-lo)*float64(i)/float64(n)
		}
		edges[0] -= (hi - lo) * 0.001
	}
	for i, v := range values {
		bin := n - 1
		for b := 0; b < n; b++ {
			if v > edges[b] && v <= edges[b+1] {
				bin = b
				break
			}
		}
		out[i] = labels[bin]
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
