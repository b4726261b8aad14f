// Package lexicon holds the static categorized keyword lists, regex rule
// sets, allow-list phrases and URL reputation data consumed by the pattern
// matcher. The data is loaded once via Default and treated as read-only;
// runtime additions go through the Overrides set instead.
package lexicon

import "regexp"

// RuleCategory tags a suspicious-pattern rule so the matcher can assign a
// severity per category rather than per rule.
type RuleCategory string

const (
	CategoryChildSafety RuleCategory = "child_safety"
	CategoryDrugs       RuleCategory = "drugs"
	CategoryWeapons     RuleCategory = "weapons"
	CategoryFraud       RuleCategory = "fraud"
	CategorySpam        RuleCategory = "spam"
	CategoryGambling    RuleCategory = "gambling"
)

// Rule is one compiled suspicious-pattern regex with its category.
type Rule struct {
	Pattern  *regexp.Regexp
	Category RuleCategory
	Reason   string
}

// Lexicon is the full pattern store. All slices and maps are read-only
// after construction; the zero value is unusable, use Default.
type Lexicon struct {
	// ScamDomains are literal substrings of known scam/phishing hosts.
	ScamDomains []string
	// BannedKeywords is the flattened multi-category banned keyword list.
	BannedKeywords []string
	// URLShorteners are shortener hosts frequently used to cloak scams.
	URLShorteners []string
	// ZeroTolerance phrases are instant critical violations; they bypass
	// the contextual disambiguator entirely.
	ZeroTolerance []string
	// AllowPhrases whitelists educational/awareness content; checked first.
	AllowPhrases []string
	// Rules are the ordered suspicious-pattern regexes; first match wins.
	Rules []Rule
	// ScamURLPatterns are regexes applied to extracted URLs.
	ScamURLPatterns []*regexp.Regexp

	// Context marker sets for the disambiguator.
	AlwaysViolate    []string
	DrugTerms        []string
	SafeDrugContexts []string
	SelfHarmTerms    []string
	FictionContexts  []string
	EducationContexts []string
	NegationMarkers  []string
}

// Default builds the canonical lexicon. Historical engine variants carried
// slightly different keyword sets; this is the consolidated one.
func Default() *Lexicon {
	return &Lexicon{
		ScamDomains: []string{
			"bit.ly/free", "tinyurl.com/free", "shorturl.at/free",
			"bit.do/win", "cutt.ly/earn", "rebrand.ly/prize",
			"t.me/pump", "telegram.me/crypto", "t.me/airdrop",
			"airdrop-now", "free-bitcoin", "btc-giveaway",
			"eth-airdrop", "crypto-moon", "pump-signal",
			"guaranteed-profit", "100x-gains", "moonshot-alert",
			"get-rich-quick", "make-money-fast", "passive-income-now",
			"investment-guaranteed", "forex-signals", "trading-bot-free",
			"binary-options-win", "loan-approved-now",
			"verify-account-now", "secure-wallet-update", "claim-reward-here",
			"reset-password-urgent", "account-suspended-fix",
		},
		BannedKeywords: flatten(
			illegalGoods, transactionPhrases, spamScam, evasionTactics,
		),
		URLShorteners: []string{
			"bit.ly", "tinyurl.com", "shorturl.at", "ow.ly", "is.gd",
			"buff.ly", "adf.ly", "bit.do", "mcaf.ee", "su.pr",
			"cutt.ly", "rebrand.ly", "clk.im", "x.co", "goo.gl",
		},
		ZeroTolerance: []string{
			"cp link", "child porn", "underage nudes", "preteen", "kiddie porn",
		},
		AllowPhrases: []string{
			"anti-drug campaign", "drug awareness", "say no to drugs",
			"weapon safety", "firearm safety course", "gun control discussion",
			"child protection", "protect children from", "child safety",
			"scam awareness", "avoid scams", "scam alert",
			"bitcoin education", "crypto basics", "blockchain technology",
			"fake news", "fake id in comedy", "counterfeit money in movies",
			"fake passport in movie", "fake id in movie", "forged documents in fiction",
			"kill yourself in video games", "kill yourself in movies",
			"kys in game", "kys in video game",
			"kill yourself in a video game", "kill yourself in a game",
			"kill yourself in a movie",
			"mass shooting prevention", "mass shooting awareness",
			"keywords you can't use", "keywords you can use", "banned keywords",
			"drugs are bad", "drug test", "drug prevention",
			"weapons of mass destruction", "weapon safety training",
		},
		Rules:           defaultRules(),
		ScamURLPatterns: compileAll(scamURLPatterns),

		AlwaysViolate: []string{
			"cp link", "child porn", "underage nudes", "preteen", "kiddie porn",
			"cocaine for sale", "heroin for sale", "meth for sale",
			"guns for sale", "weapons for sale", "fake passport",
			"buy cocaine", "buy heroin", "buy meth", "sell cocaine",
			"selling cocaine", "selling heroin", "selling meth",
		},
		DrugTerms: []string{
			"cocaine", "heroin", "meth", "weed", "marijuana",
			"fentanyl", "oxy", "xanax", "mdma", "lsd",
		},
		SafeDrugContexts: []string{
			"drug test", "drug prevention", "drug awareness", "drug education",
			"drug addiction", "drug rehabilitation", "substance abuse",
			"say no to drugs", "drugs are bad", "anti-drug",
			"cocaine is bad", "heroin kills", "meth dangers",
			"addiction recovery", "rehab", "recovery", "treatment", "counseling",
		},
		SelfHarmTerms: []string{
			"kys", "kill yourself", "go kill yourself", "you should die",
		},
		FictionContexts: []string{
			"video game", "game", "fortnite", "minecraft", "roblox", "gta",
			"call of duty", "movie", "film", "book", "story", "fiction",
			"character", "comedy", "joke", "satire", "cartoon", "anime",
			"manga", "novel", "play", "theater", "tv show", "series", "npc",
			"cinematic", "script",
		},
		EducationContexts: []string{
			"awareness", "prevention", "safety", "education", "campaign",
			"documentary", "movie", "film", "book", "story", "fiction",
			"comedy", "joke", "satire", "news", "article", "discussion",
			"debate", "analysis", "study", "research", "training",
			"course", "class", "lesson", "tutorial", "guide",
		},
		NegationMarkers: []string{
			"against", "anti", "stop", "prevent", "avoid", "bad", "wrong",
			"illegal", "dangerous", "harmful", "addiction", "recovery",
			"rehab", "treatment", "counseling", "help", "support",
		},
	}
}

var illegalGoods = []string{
	"kys", "kill yourself", "kms", "kill myself", "you should die",

	"cannabis", "marijuana", "weed", "ganja", "mary jane",
	"thc", "dank", "reefer", "chronic", "kush",
	"edibles", "thc vape", "dabs", "shatter", "hashish",
	"buy weed", "weed for sale", "sell weed", "thc carts", "buy edibles", "weed drop",

	"cocaine", "crack", "yayo", "fishscale", "nose candy", "perico",
	"8 ball", "eight ball",
	"buy coke", "coke for sale", "sell cocaine", "coke available", "coke drop",

	"heroin", "fentanyl", "fent", "fenty", "oxy", "oxys", "oxycontin",
	"oxycodone", "percocet", "percs", "hydrocodone", "vicodin",
	"sizzurp", "purple drank",
	"buy heroin", "heroin for sale", "fentanyl for sale", "oxy for sale", "sell oxys",

	"meth", "methamphetamine", "shards", "tweak",
	"amphetamine", "dexamphetamine", "dexies", "vyvanse", "adderall",
	"buy meth", "meth for sale", "ice for sale", "shards for sale",

	"mdma", "ecstasy", "molly", "xtc", "pingas", "pingers",
	"buy mdma", "mdma for sale", "molly for sale",

	"lsd", "blotter", "shrooms", "mushies", "psilocybin", "magic mushrooms",
	"dmt", "mescaline", "2c-b", "buy lsd", "lsd for sale", "get shrooms",

	"xanax", "xans", "alprazolam", "valium", "klonopin", "clonazepam",
	"ativan", "lorazepam", "benzos",
	"buy xanax", "xanax for sale", "valium for sale",

	"ketamine", "special k", "horse tranq", "buy ket", "ket for sale",

	"gun for sale", "buy a gun", "firearm", "handgun", "shotgun",
	"ammunition", "explosives", "c4", "dynamite", "ghost gun", "3d printed gun",

	"poppers", "amyl nitrate", "nangs", "whippets", "counterfeit", "fake notes",
	"cloned cards", "stolen goods", "credit card numbers", "bank logs",
	"fake passport", "fake id", "fake documents", "forged documents",
	"forged passport", "forged id", "document fraud", "identity fraud",
}

var transactionPhrases = []string{
	"for sale", "price list", "pricelist",
	"wtb", "w2b",
	"bulk deals", "bulk pricing",
	"how much for",
	"re-up", "reup",
}

var spamScam = []string{
	"get rich quick", "free money", "guaranteed returns", "ponzi",
	"pyramid scheme", "binary options", "crypto pump", "airdrops",
	"hacker for hire", "ddos", "botnet", "malware", "phishing",
	"fake login", "dox", "doxxing", "hitman", "hate speech",
	"terrorism", "t.me/+", "t.me/joinchat",
}

var evasionTactics = []string{
	"on the gear", "on the glass", "discreet drop", "stealth shipping",
	"not a cop", "no cops", "no feds", "legit vendor",
	"no time wasters", "serious buyers only",
}

var scamURLPatterns = []string{
	`bit\.ly/(?:free|win|earn|prize|claim)`,
	`(?:tinyurl|shorturl|cutt\.ly)/(?:free|crypto|btc|eth)`,
	`t\.me/\w+\?start=[a-zA-Z0-9]{20,}`,
	`(?:verify|confirm|secure|update|claim).*(?:account|wallet|prize)`,
}

func defaultRules() []Rule {
	mk := func(cat RuleCategory, reason, expr string) Rule {
		return Rule{Pattern: regexp.MustCompile(`(?i)` + expr), Category: cat, Reason: reason}
	}
	return []Rule{
		// CSAM indicators first so they can never be shadowed by a
		// lower-severity rule.
		mk(CategoryChildSafety, "Child exploitation pattern detected",
			`\b(?:cp|child\s*porn|kiddie\s*porn|preteen|underage)\s+(?:content|video|link|pic|photo)\b`),
		mk(CategoryChildSafety, "Child exploitation pattern detected",
			`\b(?:young|underage|minor|child|kid)\s+(?:nude|naked|nsfw|porn|xxx)\b`),

		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:purple\s+)?drank\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:lean|sizzurp)\s+(?:available|for sale|in stock|pm me|message me|hit me up)\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:have|got|selling|offering)\s+(?:cocaine|heroin|meth|fentanyl|xanax|percocet|oxycodone|oxy|drugs|weed)\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:buy|sell|trade|purchase|selling|offer)\s+(?:drugs|weed|cocaine|heroin|meth|pills|xanax|oxy|fentanyl|mdma|lsd)\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:cocaine|heroin|meth|fentanyl|xanax|oxy|drugs)\s+(?:available|for sale|in stock|pm me|message me|hit me up)\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:been|been\s+buying|been\s+selling|was\s+buying)\s+(?:cocaine|heroin|meth|drugs|weed|fentanyl)\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:half|quarter)\s*(?:oz|ounce|ounces)\b`),
		mk(CategoryDrugs, "Illegal goods/services detected",
			`\b(?:quarter\s*pound|qp|qps)\b`),

		mk(CategoryFraud, "Counterfeit documents detected",
			`\b(?:counterfeit|fake|forged)\s+(?:money|bills|passport|id|license|documents|ssn)\b`),
		mk(CategoryFraud, "Hacking/fraud activity detected",
			`\b(?:hack|crack|phish|steal|clone)\s+(?:account|password|credit\s*card|bank|wallet|email)\b`),
		mk(CategoryFraud, "Hacking/fraud activity detected",
			`\b(?:carding|dumps|fullz|cvv|bins)\b`),
		mk(CategoryFraud, "Hacking/fraud activity detected",
			`\bstolen\s+(?:credit\s*cards?|data|accounts?|identit(?:y|ies))\b`),

		mk(CategorySpam, "Scam financial promise detected",
			`\b(?:guaranteed|100%|instant)\s+(?:profit|returns?|money|income)\b`),
		mk(CategorySpam, "Scam financial promise detected",
			`\b(?:double|triple|10x|100x)\s+(?:your\s+)?(?:money|investment|crypto|bitcoin)\b`),
		mk(CategorySpam, "Scam financial promise detected",
			`(?:send|invest|deposit)\s+\d+.*(?:receive|get|earn)\s+\d+.*(?:back|profit|return)`),
		mk(CategorySpam, "Wallet phishing detected",
			`(?:private\s*key|seed\s*phrase|wallet\s*backup)\s+(?:share|send|dm|message)`),
		mk(CategorySpam, "Referral spam detected",
			`(?:click|join|use)\s+(?:my\s+)?(?:ref|referral|invite)\s+(?:link|code).*(?:get|earn|receive|bonus)`),
		mk(CategorySpam, "Referral spam detected",
			`t\.me/\w+\?start=\w{20,}`),

		mk(CategoryGambling, "Gambling promotion detected",
			`\b(?:casino|gambling|betting|poker)\s+(?:guaranteed|100%|sure)\s+(?:win|profit)\b`),
		mk(CategoryGambling, "Gambling promotion detected",
			`\b(?:bet|gamble|play)\s+(?:and\s+)?(?:win|earn)\s+(?:guaranteed|easy|big)`),

		mk(CategorySpam, "Pump and dump signal detected",
			`\b(?:pump|moon|moonshot|100x)\s+(?:incoming|soon|now|alert|signal)\b`),
		mk(CategorySpam, "Pump and dump signal detected",
			`\b(?:buy\s+now|load\s+up|ape\s+in)\s+(?:before|pump|moon)`),
	}
}

// SeverityForCategory maps a rule category to its severity tier.
func SeverityForCategory(cat RuleCategory) string {
	switch cat {
	case CategoryChildSafety:
		return "critical"
	case CategoryDrugs, CategoryWeapons, CategoryFraud:
		return "high"
	default:
		return "medium"
	}
}

func flatten(groups ...[]string) []string {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]string, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func compileAll(exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}
