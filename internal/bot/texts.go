package bot

// User-facing texts. Titles and content interpolated into Markdown messages are escaped by the caller.
const (
	textWelcome       = "👋 Welcome to the CPA learning bot!\n\nPick a section to study:"
	textAdminHint     = "\n\n🔧 *Admin panel* 👇"
	textJoinRequired  = "👋 Welcome!\n\nYou need to join the channel to use this bot:\n%s"
	textJoinFirst     = "⚠️ Sorry, you need to join the channel to use this bot:\n%s"
	textJoinAlert     = "⚠️ Join the channel first!"
	textNotJoinedYet  = "❌ You have not joined the channel yet!"
	textVerified      = "✅ Verified! You can use the bot now."
	textSectionGone   = "Sorry, this section no longer exists."
	textNoQuizzes     = "Sorry, there are no quizzes yet."
	textQuizList      = "🧠 Pick a quiz:"
	textQuizGone      = "Sorry, this quiz no longer exists."
	textAdminPanel    = "⚙️ *Admin panel*"
	textAskTitle      = "📝 Send the title of the new section:"
	textTitleStored   = "✅ Title: %s\n\nNow send the content for this section:"
	textSectionAdded  = "✅ Section added!"
	textDeletePick    = "Pick the section to delete:"
	textDeleted       = "✅ Deleted"
	textEditPick      = "Pick the section whose content you want to edit:"
	textEditPrompt    = "📝 Current content of the section (%s):\n\n\"%s\"\n\n👇 Send the new content now:"
	textSectionFailed = "❌ Update failed: the section no longer exists."
	textUpdated       = "✅ Section content updated!"
	textReorder       = "🔃 Use the arrows to reorder the sections:"
	textProxyPrompt   = "📝 Current proxy request text:\n\n\"%s\"\n\n👇 Send the new text now:"
	textProxyUpdated  = "✅ Proxy request text updated!"
	textCancelled     = "❎ Cancelled."
	textNothingToStop = "Nothing to cancel."
	textSaveFailed    = "⚠️ Could not save your input, please send it again."
	textStatsHeader   = "📊 *Bot statistics*\n\n"
	textStatsBody     = "👥 Total users: %d\n🔄 Interactions (start): %d\n📅 Active today: %d\n\n🆕 *Last %d joins:*\n"
	textStatsLine     = "- %s (@%s)\n"
	textRateLimited   = "⏳ Slow down a little."

	btnCheckJoin   = "Check membership ✅"
	btnOpenChannel = "📢 Open channel"
	btnCancel      = "❌ Cancel"
	btnAdminPanel  = "⚙️ Admin panel"
	btnBackToPanel = "⚙️ Back to admin panel"
	btnAdd         = "➕ Add section"
	btnDelete      = "❌ Delete section"
	btnReorder     = "🔃 Reorder sections"
	btnEdit        = "📝 Edit section content"
	btnEditProxy   = "🌐 Edit proxy text"
	btnStats       = "📊 Statistics"
	btnBack        = "🔙 Back"
	btnUp          = "⬆️"
	btnDown        = "⬇️"
)
