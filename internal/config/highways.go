package config

import (
	"sort"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// Highways is the built-in catalog of LLM highway feeds, keyed by the code
// the upstream AJAX endpoint expects. HighwayID is the expressway number.
var Highways = map[string]cctv.Highway{
	"NKV":   {Code: "NKV", HighwayID: "E1", Name: "L/raya Baru Lembah Klang (NKVE)"},
	"PLS":   {Code: "PLS", HighwayID: "E1", Name: "L/raya Utara Selatan (PLUS Utara)"},
	"SPL":   {Code: "SPL", HighwayID: "E2", Name: "L/raya Utara Selatan (PLUS Selatan)"},
	"LINK2": {Code: "LINK2", HighwayID: "E3", Name: "L/raya Hubungan Kedua Malaysia Singapura (LINK2)"},
	"KSS":   {Code: "KSS", HighwayID: "E5", Name: "L/raya Shah Alam (KESAS)"},
	"ELT":   {Code: "ELT", HighwayID: "E6", Name: "L/raya Utara Selatan Hubungan Tengah (ELITE)"},
	"CKH":   {Code: "CKH", HighwayID: "E7", Name: "L/raya Cheras Kajang (GRANDSAGA)"},
	"KLK":   {Code: "KLK", HighwayID: "E8", Name: "L/raya KL-Karak (KLK)"},
	"LPT":   {Code: "LPT", HighwayID: "E8", Name: "L/raya Pantai Timur Fasa 1 (LPT1)"},
	"ECE2":  {Code: "ECE2", HighwayID: "E8", Name: "L/raya Pantai Timur Fasa 2 (LPT2)"},
	"BES":   {Code: "BES", HighwayID: "E9", Name: "L/raya BESRAYA (BES)"},
	"NPE":   {Code: "NPE", HighwayID: "E10", Name: "L/raya Pantai Baharu (NPE)"},
	"LDP":   {Code: "LDP", HighwayID: "E11", Name: "L/raya Damansara Puchong (LDP)"},
	"AKL":   {Code: "AKL", HighwayID: "E12", Name: "L/raya Bertingkat Ampang KL (AKLEH)"},
	"KSA":   {Code: "KSA", HighwayID: "E13", Name: "L/raya Kemuning Shah Alam (LKSA)"},
	"SLK":   {Code: "SLK", HighwayID: "E18", Name: "L/raya Lingkaran Luar Kajang (SILK)"},
	"SUKE":  {Code: "SUKE", HighwayID: "E19", Name: "L/raya Sungai Besi Ulu Kelang (SUKE)"},
	"KLP":   {Code: "KLP", HighwayID: "E20", Name: "L/raya KL-Putrajaya (MEX)"},
	"LKS":   {Code: "LKS", HighwayID: "E21", Name: "L/raya Kajang Seremban (LEKAS)"},
	"SDE":   {Code: "SDE", HighwayID: "E22", Name: "L/raya Senai Desaru (SDE)"},
	"SRT":   {Code: "SRT", HighwayID: "E23", Name: "L/raya Skim Penyuraian Trafik KL-Barat (SPRINT)"},
	"LTR":   {Code: "LTR", HighwayID: "E25", Name: "L/raya KL-Kuala Selangor (LATAR)"},
	"SKV":   {Code: "SKV", HighwayID: "E26", Name: "L/raya Lembah Klang Selatan (SKVE)"},
	"JKSB":  {Code: "JKSB", HighwayID: "E28", Name: "Jambatan Sultan Abdul Halim Muadzam Shah (JSAHMS)"},
	"NNKSB": {Code: "NNKSB", HighwayID: "E30", Name: "L/raya Pintas Selat Klang Utara Baru (NNKSB)"},
	"DASH":  {Code: "DASH", HighwayID: "E31", Name: "L/raya Bertingkat Damansara Shah Alam (DASH)"},
	"WCE":   {Code: "WCE", HighwayID: "E32", Name: "L/raya Pesisiran Pantai Barat (WCE)"},
	"DUKE":  {Code: "DUKE", HighwayID: "E33", Name: "L/raya Duta-Ulu Kelang (DUKE)"},
	"GCE":   {Code: "GCE", HighwayID: "E35", Name: "L/raya Koridor Gutrie (GCE)"},
	"PNB":   {Code: "PNB", HighwayID: "E36", Name: "Jambatan Pulau Pinang (PNB)"},
	"SMT":   {Code: "SMT", HighwayID: "E38", Name: "Terowong SMART"},
	"SPE":   {Code: "SPE", HighwayID: "E39", Name: "L/raya Setiawangsa Pantai (SPE)"},
}

// HighwayCodes returns all catalog codes in stable order.
func HighwayCodes() []string {
	codes := make([]string, 0, len(Highways))
	for code := range Highways {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
