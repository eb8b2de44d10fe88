package golden

import "time"

// SeedEpoch is the knowledge base epoch the builtin answers were authored
// against. Deployments whose kb_epoch moves past it stop serving them.
const SeedEpoch int64 = 1

var seedUpdatedAt = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// builtinAnswers are the curated high-frequency FAQ answers shipped with the
// binary. Content is reviewed by a tax professional before each release.
var builtinAnswers = []*Answer{
	{
		Pattern: "Cos'è l'IVA?",
		Content: "L'IVA (Imposta sul Valore Aggiunto) è l'imposta indiretta sui " +
			"consumi applicata alla cessione di beni e alla prestazione di servizi. " +
			"L'aliquota ordinaria è il 22%; si applicano aliquote ridotte del 10%, " +
			"5% e 4% a categorie specifiche di beni e servizi.",
		Confidence: 0.97,
		Epoch:      SeedEpoch,
		Meta: Metadata{
			UpdatedAt: seedUpdatedAt,
			Tags:      []string{"iva", "imposte-indirette"},
			Category:  "tax",
		},
	},
	{
		Pattern: "Cos'è l'IRPEF?",
		Content: "L'IRPEF (Imposta sul Reddito delle Persone Fisiche) è l'imposta " +
			"diretta e progressiva sul reddito delle persone fisiche. Si applica " +
			"per scaglioni di reddito con aliquote crescenti; detrazioni e " +
			"deduzioni riducono rispettivamente l'imposta lorda e la base imponibile.",
		Confidence: 0.96,
		Epoch:      SeedEpoch,
		Meta: Metadata{
			UpdatedAt: seedUpdatedAt,
			Tags:      []string{"irpef", "imposte-dirette"},
			Category:  "tax",
		},
	},
	{
		Pattern: "Cos'è il regime forfettario?",
		Content: "Il regime forfettario è il regime fiscale agevolato per persone " +
			"fisiche con partita IVA e ricavi o compensi entro la soglia di legge. " +
			"Il reddito imponibile si determina con un coefficiente di redditività " +
			"e sconta un'imposta sostitutiva, con esonero da IVA e ritenute.",
		Confidence: 0.94,
		Epoch:      SeedEpoch,
		Meta: Metadata{
			UpdatedAt: seedUpdatedAt,
			Tags:      []string{"regime-forfettario", "partita-iva"},
			Category:  "tax",
		},
	},
	{
		Pattern: "Cos'è la fattura elettronica?",
		Content: "La fattura elettronica è la fattura emessa in formato XML e " +
			"trasmessa tramite il Sistema di Interscambio (SdI) dell'Agenzia delle " +
			"Entrate. È obbligatoria per la generalità delle operazioni tra " +
			"soggetti residenti, con limitate eccezioni.",
		Confidence: 0.95,
		Epoch:      SeedEpoch,
		Meta: Metadata{
			UpdatedAt: seedUpdatedAt,
			Tags:      []string{"fattura-elettronica", "adempimenti"},
			Category:  "accounting",
		},
	},
	{
		Pattern: "Cos'è il codice fiscale?",
		Content: "Il codice fiscale è il codice alfanumerico di 16 caratteri che " +
			"identifica univocamente le persone fisiche presso l'amministrazione " +
			"finanziaria italiana. È rilasciato dall'Agenzia delle Entrate e " +
			"richiesto per contratti, rapporti bancari e adempimenti fiscali.",
		Confidence: 0.96,
		Epoch:      SeedEpoch,
		Meta: Metadata{
			UpdatedAt: seedUpdatedAt,
			Tags:      []string{"codice-fiscale", "anagrafe-tributaria"},
			Category:  "tax",
		},
	},
}

// SeedBuiltin loads the curated answers into a store and reports how many
// were added.
func SeedBuiltin(store *MemoryStore) int {
	for _, a := range builtinAnswers {
		store.Put(a)
	}
	return len(builtinAnswers)
}
