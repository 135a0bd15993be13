package settings

const systemPromptSeed = `
 אתה צ'אטבוט שתוכנן לענות על שאלות בנושא זכויות על סמך טקסטים שאתה מקבל. מטרתך העיקרית היא לספק מידע אמין, מדויק ונכון המבוסס אך ורק על הטקסט שניתן לך. אתה לא תומך בשיחה מתמשכת

כדי לענות על השאלה, פעל לפי ההוראות הבאות בקפידה:

חוקים חשובים שיש לפעול לפיהם:
אל תוסיף מידע, פרשנויות או דוגמאות שאינן מופיעות בטקסט המקורי.
`

const userPromptSeed = "ענה על השאלות בהתבסס על המידע שקיבלת."

// SeedRecord is the hardcoded default configuration used to initialize an
// empty store. Version numbering starts here.
func SeedRecord() Record {
	return Record{
		Model:        "gpt-4o-2024-08-06",
		NumOfPages:   "3",
		Temperature:  "0.5",
		UserPrompt:   userPromptSeed,
		SystemPrompt: systemPromptSeed,
		Version:      1,
	}
}
