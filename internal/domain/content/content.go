// Package content serves the public landing and education pages in the
// supported languages.
package content

import "fmt"

type Lang string

const (
	LangEnglish Lang = "en"
	LangArabic  Lang = "ar"

	DefaultLang = LangEnglish
)

// ErrUnsupportedLang is returned by ParseLang for unknown language codes.
type ErrUnsupportedLang struct {
	Code string
}

func (e *ErrUnsupportedLang) Error() string {
	return fmt.Sprintf("unsupported language %q (want en or ar)", e.Code)
}

// ParseLang maps a query value to a Lang. Empty selects DefaultLang.
func ParseLang(code string) (Lang, error) {
	switch Lang(code) {
	case "":
		return DefaultLang, nil
	case LangEnglish, LangArabic:
		return Lang(code), nil
	}
	return "", &ErrUnsupportedLang{Code: code}
}

// Direction is the text direction clients should render with.
func (l Lang) Direction() string {
	if l == LangArabic {
		return "rtl"
	}
	return "ltr"
}

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Landing struct {
	Lang      Lang      `json:"lang"`
	Dir       string    `json:"dir"`
	AppName   string    `json:"app_name"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	CallToAct string    `json:"call_to_action"`
	Features  []Feature `json:"features"`
}

type Section struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

type Education struct {
	Lang     Lang      `json:"lang"`
	Dir      string    `json:"dir"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	Notice   Feature   `json:"notice"`
}

type pages struct {
	landing   Landing
	education Education
}

var catalog = map[Lang]pages{
	LangEnglish: {
		landing: Landing{
			AppName:   "OCT Vision AI",
			Title:     "Advanced OCT Scan Analysis with AI",
			Subtitle:  "Detect retinal diseases early with our state-of-the-art deep learning system. Get instant, accurate diagnoses for DME, CNV, and Drusen.",
			CallToAct: "Get Started",
			Features: []Feature{
				{"AI-Powered Analysis", "Advanced deep learning algorithms provide accurate disease detection and classification."},
				{"Secure & Private", "Your medical data is protected with enterprise-grade security and encryption."},
				{"Instant Results", "Get detailed reports for both doctors and patients within seconds."},
			},
		},
		education: Education{
			Title: "Eye Health Education Center",
			Sections: []Section{
				{
					Title:       "Common Eye Conditions",
					Description: "Learn about various eye conditions, their symptoms, and treatment options.",
					Topics:      []string{"Diabetic Retinopathy", "Macular Degeneration", "Glaucoma", "Cataracts"},
				},
				{
					Title:       "Prevention & Care",
					Description: "Discover ways to maintain healthy eyes and prevent vision problems.",
					Topics:      []string{"Regular Eye Examinations", "Proper Nutrition for Eye Health", "Digital Eye Strain Prevention", "Protective Eyewear"},
				},
				{
					Title:       "Treatment Options",
					Description: "Explore various treatment options and procedures available.",
					Topics:      []string{"Laser Treatments", "Medication Options", "Surgical Procedures", "Vision Therapy"},
				},
				{
					Title:       "Advances in OCT Technology",
					Description: "New developments in OCT imaging are revolutionizing early detection of eye diseases.",
					Topics:      []string{},
				},
			},
			Notice: Feature{
				Title:       "Important Notice",
				Description: "Regular eye examinations are crucial for maintaining eye health. The American Academy of Ophthalmology recommends comprehensive eye exams every 1-2 years for adults over 65, and every 2-4 years for adults aged 40-65.",
			},
		},
	},
	LangArabic: {
		landing: Landing{
			AppName:   "رؤية OCT الذكية",
			Title:     "تحليل متقدم لمسح OCT باستخدام الذكاء الاصطناعي",
			Subtitle:  "اكتشف أمراض الشبكية مبكرًا باستخدام نظام التعلم العميق المتطور لدينا. احصل على تشخيصات فورية ودقيقة لـ DME و CNV و Drusen.",
			CallToAct: "ابدأ الآن",
			Features: []Feature{
				{"تحليل مدعوم بالذكاء الاصطناعي", "توفر خوارزميات التعلم العميق المتقدمة كشفًا دقيقًا للأمراض وتصنيفها."},
				{"آمن و خاص", "بياناتك الطبية محمية بأمان وتشفير على مستوى المؤسسات."},
				{"نتائج فورية", "احصل على تقارير مفصلة للأطباء والمرضى في غضون ثوانٍ."},
			},
		},
		education: Education{
			Title: "مركز تعليم صحة العين",
			Sections: []Section{
				{
					Title:       "أمراض العيون الشائعة",
					Description: "تعرف على أمراض العيون المختلفة وأعراضها وخيارات العلاج.",
					Topics:      []string{"اعتلال الشبكية السكري", "الضمور البقعي", "الجلوكوما", "إعتام عدسة العين (الماء الأبيض)"},
				},
				{
					Title:       "الوقاية والرعاية",
					Description: "اكتشف طرق الحفاظ على صحة العين ومنع مشاكل الرؤية.",
					Topics:      []string{"فحوصات العين المنتظمة", "التغذية السليمة لصحة العين", "الوقاية من إجهاد العين الرقمي", "نظارات واقية"},
				},
				{
					Title:       "خيارات العلاج",
					Description: "استكشف خيارات وإجراءات العلاج المختلفة المتاحة.",
					Topics:      []string{"علاجات الليزر", "خيارات الأدوية", "الإجراءات الجراحية", "العلاج البصري"},
				},
				{
					Title:       "تطورات في تقنية OCT",
					Description: "التطورات الجديدة في تصوير OCT تحدث ثورة في الكشف المبكر عن أمراض العيون.",
					Topics:      []string{},
				},
			},
			Notice: Feature{
				Title:       "ملاحظة هامة",
				Description: "فحوصات العين المنتظمة ضرورية للحفاظ على صحة العين. توصي الأكاديمية الأمريكية لطب العيون بإجراء فحوصات شاملة للعين كل 1-2 سنة للبالغين فوق 65 عامًا، وكل 2-4 سنوات للبالغين الذين تتراوح أعمارهم بين 40-65 عامًا.",
			},
		},
	},
}

// LandingFor returns the landing page in lang.
func LandingFor(lang Lang) Landing {
	l := catalog[lang].landing
	l.Lang, l.Dir = lang, lang.Direction()
	return l
}

// EducationFor returns the education page in lang.
func EducationFor(lang Lang) Education {
	ed := catalog[lang].education
	ed.Lang, ed.Dir = lang, lang.Direction()
	return ed
}
