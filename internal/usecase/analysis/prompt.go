package analysis

import (
	"strings"
)

// Categories перечисляет категории, из которых модель выбирает complaint_category.
var Categories = []struct {
	Name string
	Hint string
}{
	{"Городская инфраструктура и ЖКХ", "мусор, дороги, освещение, вода, отопление, стройки"},
	{"Общественный порядок и безопасность", "шум, драки, преступления, пожары"},
	{"Образование и дети", "школы, детсады, поборы, питание"},
	{"Здравоохранение", "отказ в помощи, грубость врачей, лекарства, очереди"},
	{"Коррупция и госуслуги", "вымогательство, документы, очереди в госорганах"},
	{"Экология и животные", "свалки, вырубка деревьев, загрязнение, бродячие животные"},
	{"Интернет, цифровые услуги и связь", "онлайн-госуслуги, интернет от госпровайдера"},
	{"Работа и социальная защита", "невыплата зарплаты, пенсии, пособия, условия труда"},
	{"Экономика и бизнес", "барьеры для бизнеса, тарифы, налоги"},
	{"Другое", "если ничего не подходит"},
}

const promptHeader = `Ты аналитик центра обработки обращений граждан. Разбери жалобу и извлеки из неё структурированные данные.

Жалоба:
<<<
`

const promptSchema = `
>>>

Ответь ТОЛЬКО JSON-объектом с полями:
{
  "responsible_department": строка с названием ответственного ведомства (например "Мэрия г. Бишкек", "МВД КР", "Министерство здравоохранения КР") или null,
  "complaint_type": "личная" | "общегражданская" | null,
  "complaint_category": одна категория из списка ниже или null,
  "complaint_subcategory": суть проблемы в 2-5 словах или null,
  "address_text": адрес из текста как есть (город, улица, дом) или null,
  "latitude": число или null,
  "longitude": число или null,
  "district": район города или области или null,
  "severity_level": "низкий" | "средний" | "высокий" | "критический" | null,
  "applicant_data": ФИО и контакты заявителя, если они есть в тексте, или null,
  "other_details": прочие важные детали (даты, номера документов, последствия) или null
}

Категории:
`

const promptRules = `
Правила:
1. responsible_department: наиболее вероятное ведомство по сути проблемы; если неясно, null.
2. complaint_type: "личная", если затронут один человек или семья; "общегражданская", если затронут неопределённый круг лиц.
3. complaint_category: ровно одна категория из списка.
4. latitude и longitude: только если явно указаны в тексте, не геокодируй.
5. severity_level: "низкий" для мелкого неудобства, "средний" для существенного, "высокий" если страдает здоровье или качество жизни, "критический" при угрозе жизни многих людей.
6. applicant_data: только то, что прямо написано в тексте.
Не добавляй пояснений вне JSON.`

// BuildPrompt собирает инструкцию для разбора жалобы.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString(strings.TrimSpace(text))
	b.WriteString(promptSchema)
	for _, c := range Categories {
		b.WriteString("* \"")
		b.WriteString(c.Name)
		b.WriteString("\" (")
		b.WriteString(c.Hint)
		b.WriteString(")\n")
	}
	b.WriteString(promptRules)
	return b.String()
}
