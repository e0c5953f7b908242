// Package detail describes each leaf label in plain language.
package detail

import "sort"

// Unknown is the label used when no detail matches
const Unknown = "unknown"

// Detail is a human description of a label
type Detail struct {
	Name     string `json:"name"`
	Symptoms string `json:"symptoms"`
	CareTips string `json:"careTips"`
}

var details = map[string]Detail{
	"healthy": {
		Name:     "Healthy leaf",
		Symptoms: "No spots or abnormal discoloration. The blade is bright, firm and evenly coloured.",
		CareTips: "Keep watering and fertilizing balanced, and remove old dry leaves to prevent fungal and bacterial infection.",
	},
	"disease_leaf_spot": {
		Name:     "Leaf spot",
		Symptoms: "Small round brown spots with a yellow halo that spread and can merge into large patches.",
		CareTips: "Prune heavily affected leaves and keep the canopy open. Consider a copper or mancozeb spray as labelled and rotate active ingredients.",
	},
	"disease_blight": {
		Name:     "Blight",
		Symptoms: "Leaves wilt quickly with black or brown scorch streaks along the veins, sometimes with a sharp smell or mould.",
		CareTips: "Cut out blighted leaves and shoots and disinfect tools. Improve drainage and apply protective sprays as locally recommended.",
	},
	"disease_mildew": {
		Name:     "Powdery or downy mildew",
		Symptoms: "A white or grey powdery layer on the leaf surface, sometimes with deformed young leaves and dull green colour.",
		CareTips: "Increase air flow and avoid wetting the leaves. Sulfur or bicarbonate sprays help; rotate DMI and QoI groups when needed.",
	},
	"stress_nutrient": {
		Name:     "Nutrient deficiency or excess",
		Symptoms: "Patchy yellowing, scorched or bleached margins; veins sometimes greener than the blade (N, K or Mg deficiency).",
		CareTips: "Check soil pH and nutrients. Apply balanced N-P-K, add micronutrients (Ca, Mg, Zn, B) and improve the soil with organic matter.",
	},
	Unknown: {
		Name:     "Unknown",
		Symptoms: "The sample does not match the training set or the photo is blurry. There is not enough information for specific symptoms.",
		CareTips: "Take a sharper photo and check the underside of the leaf and the stem. If disease is suspected, clean up the garden and ask a local expert.",
	},
}

// For returns the detail for label, or the Unknown detail
func For(label string) Detail {
	if d, ok := details[label]; ok {
		return d
	}
	return details[Unknown]
}

// Has reports whether label has its own detail
func Has(label string) bool {
	_, ok := details[label]
	return ok
}

// Labels returns every label with a detail, sorted
func Labels() []string {
	out := make([]string, 0, len(details))
	for label := range details {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
