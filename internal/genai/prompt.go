package genai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/John-Robertt/watchguide/internal/domain"
)

const translateMarker = "ce texte: "

// promptRecord 是送入模型的记录视图：去掉图片相关字段。
type promptRecord struct {
	Brand       string          `json:"brand"`
	Family      string          `json:"family"`
	Reference   string          `json:"reference"`
	Name        string          `json:"name"`
	Movement    domain.Movement `json:"movement"`
	Produced    string          `json:"produced"`
	Limited     string          `json:"limited"`
	Case        domain.CaseInfo `json:"case"`
	Dial        domain.DialInfo `json:"dial"`
	Description string          `json:"description"`
	Prices      domain.Prices   `json:"prices"`
}

// RecordJSON 返回缩进 2 空格、不转义 HTML 的记录 JSON（不含 image_url / local_image_path）。
func RecordJSON(r domain.WatchRecord) (string, error) {
	r.Normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(promptRecord{
		Brand:       r.Brand,
		Family:      r.Family,
		Reference:   r.Reference,
		Name:        r.Name,
		Movement:    r.Movement,
		Produced:    r.Produced,
		Limited:     r.Limited,
		Case:        r.Case,
		Dial:        r.Dial,
		Description: r.Description,
		Prices:      r.Prices,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DraftPrompt 是首轮长文提示词。
func DraftPrompt(recordJSON string, minWords int, language string) Prompt {
	lang := strings.ToUpper(language)
	target := minWords + 300
	user := fmt.Sprintf(`
IMPORTANT : Les données JSON ci-dessous sont en anglais,
mais tu dois rédiger la totalité de la réponse EN %[1]s.

Objectif :
- Rédiger un article d'au moins %[2]d mots (pour être sûr de dépasser %[3]d),
- Le texte doit être en HTML interne, SANS les balises <html>, <head>, <body>,
- Inclure des balises <h2> pour chaque partie du plan listé ci-après,
  et éventuellement <h3> ou <h4> si nécessaire,
- Pas de titre SEO, pas de meta, pas de H1 ici.

Voici les données JSON :

%[4]s

Plan suggéré (mais tu peux l'améliorer et l'étoffer,
tout en gardant au minimum des sections <h2>). Ne sois pas scolaire : renomme chaque section
avec un titre personnalisé et engageant qui reflète son contenu :

1) Introduction générale et présentation du modèle
2) Contexte historique et genèse (si pertinent)
3) Anecdotes ou références culturelles (cinéma, mode, collaborations) : sois spécifique
   (noms factuels, tel film, telle collaboration), évite les formulations vides d'informations
4) Particularités techniques et design (mouvement, boîtier, cadran, etc.)
5) Conseils de style et de port : avec quels types de tenue, occasions, etc.
6) L'impact de ce modèle dans l'horlogerie de luxe et chez les collectionneurs
7) Une partie pertinente de ton choix relative à cette montre
8) Conclusion : pourquoi ce modèle est emblématique (avec un titre original, pas "Conclusion")

Consignes de style :
- Riche, immersif, informatif, passionné d'horlogerie, avec une approche originale,
- Registre soutenu mais accessible,
- Chaque titre (H2/H3/H4) doit refléter le contenu de la section, sans majuscules
  sauf pour les noms propres et la première lettre
  (exemple : <h2>L'héritage de la Zeitwerk dans le panorama du luxe et chez les collectionneurs</h2>),
- Pas de redites inutiles, apporte du contenu historique et culturel,
- Aérer avec des paragraphes,
- Format HTML interne (sans <html>, <head>, <body>),
- Minimum %[3]d mots, idéalement %[2]d.
`, lang, target, minWords, recordJSON)
	return Prompt{Kind: KindDraft, User: user}
}

// ExtendPrompt 要求模型在保留全文的前提下扩写，并返回完整文本。
func ExtendPrompt(current string, words, minWords int, language string) Prompt {
	lang := strings.ToUpper(language)
	user := fmt.Sprintf(`
Tu as rédigé un article de %[1]d mots,
mais l'objectif est de dépasser %[2]d mots.
Il manque environ %[3]d mots.
Complète et enrichis ce texte EN %[4]s (toujours en HTML interne,
sans <html>/<head>/<body>) sans redites inutiles.
Apporte du contenu nouveau, pertinent et cohérent
(historique, anecdotes, technique, style).
Renvoie l'intégralité du texte dans ta réponse,
avec des sections <h2>, <h3>, <h4> si tu veux,
mais évite toute structure <html>.

Texte actuel :

%[5]s
`, words, minWords, minWords-words, lang, current)
	return Prompt{Kind: KindExtend, User: user}
}

// MetadataPrompt 要求模型只返回含 seo_title / meta_description / h1 的 JSON。
func MetadataPrompt(article, language string) Prompt {
	lang := strings.ToLower(language)
	user := fmt.Sprintf(`
Tu viens de rédiger l'article HTML interne (en %[1]s) ci-dessous,
sans SEO ni meta ni H1.
Génère un JSON VALIDE avec exactement 3 clés :
- "seo_title": un titre SEO pertinent (60-70 caractères) en %[1]s
- "meta_description": environ 160 caractères, en %[1]s
- "h1": un titre principal, sans majuscules abusives (sauf initiales ou noms propres), en %[1]s

Ne renvoie AUCUN autre texte que ce JSON, sans commentaire ni phrase supplémentaire.
Voici l'article :

%[2]s
`, lang, article)
	return Prompt{Kind: KindMetadata, User: user}
}

// TranslatePrompt 是描述字段的翻译提示词，目标语言与正文一致。
func TranslatePrompt(text, language string) Prompt {
	return Prompt{Kind: KindTranslate, User: "Traduis en " + language + " " + translateMarker + text}
}
