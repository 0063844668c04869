package extract

// payers maps lowercase spellings to the canonical payer name.
var payers = map[string]string{
	"aetna":                   "Aetna",
	"anthem":                  "Anthem",
	"blue cross blue shield":  "Blue Cross Blue Shield",
	"bluecross blueshield":    "Blue Cross Blue Shield",
	"bcbs":                    "Blue Cross Blue Shield",
	"cigna":                   "Cigna",
	"humana":                  "Humana",
	"kaiser permanente":       "Kaiser Permanente",
	"medicare":                "Medicare",
	"medicaid":                "Medicaid",
	"unitedhealthcare":        "UnitedHealthcare",
	"united healthcare":       "UnitedHealthcare",
	"united health care":      "UnitedHealthcare",
	"molina":                  "Molina Healthcare",
	"wellcare":                "WellCare",
	"tricare":                 "TRICARE",
	"ambetter":                "Ambetter",
	"highmark":                "Highmark",
	"optumrx":                 "OptumRx",
	"express scripts":         "Express Scripts",
	"cvs caremark":            "CVS Caremark",
	"caremark":                "CVS Caremark",
	"oscar health":            "Oscar Health",
	"centene":                 "Centene",
	"health net":              "Health Net",
	"empire blue cross":       "Empire BlueCross",
	"independence blue cross": "Independence Blue Cross",
}

// brands maps lowercase brand names to canonical brand and generic names.
var brands = map[string][2]string{
	"humira":    {"Humira", "adalimumab"},
	"enbrel":    {"Enbrel", "etanercept"},
	"remicade":  {"Remicade", "infliximab"},
	"stelara":   {"Stelara", "ustekinumab"},
	"skyrizi":   {"Skyrizi", "risankizumab"},
	"rinvoq":    {"Rinvoq", "upadacitinib"},
	"xeljanz":   {"Xeljanz", "tofacitinib"},
	"otezla":    {"Otezla", "apremilast"},
	"cosentyx":  {"Cosentyx", "secukinumab"},
	"taltz":     {"Taltz", "ixekizumab"},
	"dupixent":  {"Dupixent", "dupilumab"},
	"xolair":    {"Xolair", "omalizumab"},
	"nucala":    {"Nucala", "mepolizumab"},
	"ozempic":   {"Ozempic", "semaglutide"},
	"wegovy":    {"Wegovy", "semaglutide"},
	"rybelsus":  {"Rybelsus", "semaglutide"},
	"mounjaro":  {"Mounjaro", "tirzepatide"},
	"zepbound":  {"Zepbound", "tirzepatide"},
	"trulicity": {"Trulicity", "dulaglutide"},
	"victoza":   {"Victoza", "liraglutide"},
	"jardiance": {"Jardiance", "empagliflozin"},
	"farxiga":   {"Farxiga", "dapagliflozin"},
	"eliquis":   {"Eliquis", "apixaban"},
	"xarelto":   {"Xarelto", "rivaroxaban"},
	"entresto":  {"Entresto", "sacubitril/valsartan"},
	"repatha":   {"Repatha", "evolocumab"},
	"praluent":  {"Praluent", "alirocumab"},
	"lantus":    {"Lantus", "insulin glargine"},
	"aimovig":   {"Aimovig", "erenumab"},
	"ajovy":     {"Ajovy", "fremanezumab"},
	"emgality":  {"Emgality", "galcanezumab"},
	"keytruda":  {"Keytruda", "pembrolizumab"},
	"ocrevus":   {"Ocrevus", "ocrelizumab"},
	"tecfidera": {"Tecfidera", "dimethyl fumarate"},
	"harvoni":   {"Harvoni", "ledipasvir/sofosbuvir"},
	"epclusa":   {"Epclusa", "sofosbuvir/velpatasvir"},
}

// generics lists generic drug names recognized on their own.
var generics = []string{
	"adalimumab", "etanercept", "infliximab", "ustekinumab", "risankizumab",
	"upadacitinib", "tofacitinib", "apremilast", "secukinumab", "ixekizumab",
	"dupilumab", "omalizumab", "mepolizumab", "semaglutide", "tirzepatide",
	"dulaglutide", "liraglutide", "empagliflozin", "dapagliflozin", "apixaban",
	"rivaroxaban", "evolocumab", "alirocumab", "insulin glargine", "erenumab",
	"fremanezumab", "galcanezumab", "pembrolizumab", "ocrelizumab", "methotrexate",
	"metformin", "atorvastatin", "rosuvastatin", "lisinopril", "amlodipine",
	"levothyroxine", "prednisone", "hydroxychloroquine", "sulfasalazine", "gabapentin",
}

// routes maps route spellings to the canonical route. Abbreviations are
// matched case-sensitively.
var routes = map[string]string{
	"subcutaneous":    "subcutaneous",
	"subcutaneously":  "subcutaneous",
	"subq":            "subcutaneous",
	"sub-q":           "subcutaneous",
	"intravenous":     "intravenous",
	"intravenously":   "intravenous",
	"intramuscular":   "intramuscular",
	"intramuscularly": "intramuscular",
	"oral":            "oral",
	"orally":          "oral",
	"by mouth":        "oral",
	"topical":         "topical",
	"topically":       "topical",
	"inhaled":         "inhalation",
	"inhalation":      "inhalation",
	"intranasal":      "intranasal",
	"transdermal":     "transdermal",
}

var routeAbbreviations = map[string]string{
	"SC": "subcutaneous",
	"SQ": "subcutaneous",
	"IV": "intravenous",
	"IM": "intramuscular",
	"PO": "oral",
}

// diagnoses lists condition names recognized in free text.
var diagnoses = []string{
	"rheumatoid arthritis", "psoriatic arthritis", "plaque psoriasis", "psoriasis",
	"crohn's disease", "crohns disease", "ulcerative colitis", "ankylosing spondylitis",
	"hidradenitis suppurativa", "atopic dermatitis", "multiple sclerosis",
	"type 2 diabetes mellitus", "type 2 diabetes", "type 1 diabetes", "diabetes mellitus",
	"hypertension", "hyperlipidemia", "hypercholesterolemia", "asthma", "copd",
	"chronic obstructive pulmonary disease", "heart failure", "atrial fibrillation",
	"migraine", "obesity", "chronic kidney disease", "hepatitis c", "breast cancer",
	"lung cancer", "deep vein thrombosis",
}
