package chatbot

// Fixed assistant copy. The widget audience is Hebrew speaking.
const (
	welcomeMessage = "היי יקירה! 😊 אני כאן מטעם מיטודרם - מומחית האקסוזומים שלכם!\n" +
		"השירותים שלנו מיועדים במיוחד לקוסמטיקאיות מוסמכות. יש לי דברים מדהימים לשתף!\n" +
		"תרצי לשמוע על הטכנולוגיה המהפכנית שלנו?"

	idleNudgeMessage = "האם תרצי שנחזור אליך? 😊"

	formUpdatedMessage = "מעולה! עדכנתי את הפרטים בטופס. תוכלי לעדכן את שאר הפרטים ולשלוח 😊"

	phoneCapturedMessage = "מצוין! קיבלתי את מספר הטלפון שלך. בואי נמלא את שאר הפרטים ומישהו מהצוות יחזור אליך בהקדם! 😊"

	askForPhoneMessage = "נהדר! כדי שמישהו מהצוות יוכל לחזור אליך, אני צריכה כמה פרטים קטנים 😊\n\n" +
		"אפשר לכתוב לי את השם ומספר הטלפון שלך?"

	connectionErrorMessage = "מצטערת, הייתה שגיאה בחיבור. אנא נסי שוב או צרי קשר ישירות בוואטסאפ 😊"

	leadSuccessMessage = "🎉 נהדר! הפרטים נשלחו אלינו בהצלחה!\nמישהו מהצוות יצור איתך קשר בהקדם.\n\nיש לך עוד שאלות בינתיים?"

	leadFailureMessage = "מצטערת, הייתה שגיאה בשליחת הפרטים. אפשר לנסות שוב או לכתוב לנו בוואטסאפ ישירות 😊"
)

// Lead submission defaults.
const (
	// PlaceholderNotProvided replaces empty optional fields in a submitted lead.
	PlaceholderNotProvided = "לא צוין"
	// DefaultConversationSummary is used when the draft has no subject.
	DefaultConversationSummary = "פנייה כללית"
	// DefaultLeadSource tags leads captured by this widget.
	DefaultLeadSource = "אתר מיטודרם - צ'אטבוט"
)
